package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/middleware"
	"github.com/farellandr/hadir/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func getDB(c *gin.Context) (*gorm.DB, bool) {
	db, exists := c.Get("db")
	if !exists {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return nil, false
	}
	return db.(*gorm.DB), true
}

func getServices(c *gin.Context) (*services.Services, bool) {
	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return nil, false
	}
	return svc, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		helpers.RespondWithError(c, http.StatusUnauthorized, "User ID not found in token.")
		return uuid.Nil, false
	}
	userUUID, ok := userID.(uuid.UUID)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Invalid user ID type.")
		return uuid.Nil, false
	}
	return userUUID, true
}

func eventIDParam(c *gin.Context) (uuid.UUID, bool) {
	eventID, err := helpers.ParseUUIDParam(c, "id")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event ID.")
		return uuid.Nil, false
	}
	return eventID, true
}

// respondServiceError maps a service error to a status code. Each category
// keeps its own status so clients can tell them apart.
func respondServiceError(c *gin.Context, err error) {
	if rejection, ok := services.RejectionOf(err); ok {
		status := http.StatusUnprocessableEntity
		switch rejection.Reason {
		case services.ReasonInvalidFormat:
			status = http.StatusBadRequest
		case services.ReasonTokenNotFound:
			status = http.StatusNotFound
		case services.ReasonTokenExpired:
			status = http.StatusGone
		case services.ReasonNotRegistered, services.ReasonPaymentIncomplete, services.ReasonScopeMismatch:
			status = http.StatusForbidden
		}
		helpers.RespondWithReason(c, status, string(rejection.Reason), rejectionMessage(rejection.Reason))
		return
	}

	switch {
	case errors.Is(err, services.ErrConfiguration):
		helpers.RespondWithReason(c, http.StatusBadRequest, "configuration", "Missing or invalid event or direction.")
	case errors.Is(err, services.ErrEventNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
	case errors.Is(err, services.ErrUserNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "User not found.")
	case errors.Is(err, services.ErrPaymentNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Payment not found.")
	case errors.Is(err, services.ErrNotRegistered):
		helpers.RespondWithReason(c, http.StatusNotFound, string(services.ReasonNotRegistered), "You are not registered for this event.")
	case errors.Is(err, services.ErrAlreadyRegistered):
		helpers.RespondWithReason(c, http.StatusConflict, "already_registered", "Already registered for this event.")
	case errors.Is(err, services.ErrNotEligible):
		helpers.RespondWithReason(c, http.StatusForbidden, "not_eligible", "Participant has not completed attendance or payment.")
	case errors.Is(err, services.ErrTemplateMissing):
		helpers.RespondWithReason(c, http.StatusUnprocessableEntity, "template_missing", "Certificate template is not configured for this event.")
	case errors.Is(err, services.ErrInvalidTemplate):
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidSignature):
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid signature.")
	case errors.Is(err, services.ErrEventIsFree):
		helpers.RespondWithError(c, http.StatusBadRequest, "Event is free, no payment required.")
	case errors.Is(err, services.ErrGateway):
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment gateway is unavailable.")
	default:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Internal error, please try again.")
	}
}

func rejectionMessage(reason services.RejectionReason) string {
	switch reason {
	case services.ReasonInvalidFormat:
		return "QR code not recognized."
	case services.ReasonTokenNotFound:
		return "QR code is not valid."
	case services.ReasonTokenExpired:
		return "QR code has expired, scan the latest one."
	case services.ReasonScopeMismatch:
		return "QR code belongs to another event or session."
	case services.ReasonNotRegistered:
		return "You are not registered for this event."
	case services.ReasonPaymentIncomplete:
		return "Payment for this event is not complete."
	}
	return "Scan rejected."
}
