package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func CreatePayment(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	checkout, err := svc.Payments.CreatePayment(c.Request.Context(), eventID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkout)
}

func GetPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid payment ID.")
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	payment, err := svc.Payments.Get(c.Request.Context(), paymentID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// PaymentNotification is the gateway webhook. Anything other than 2xx makes
// the gateway retry, so replays and ignored statuses answer 200.
func PaymentNotification(c *gin.Context) {
	var notification services.Notification
	if err := c.ShouldBindJSON(&notification); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid notification payload.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	result, err := svc.Payments.HandleNotification(c.Request.Context(), notification)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) || errors.Is(err, services.ErrPaymentNotFound) {
			respondServiceError(c, err)
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to process notification.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "OK",
		"order_id": result.OrderID,
		"outcome":  result.Outcome,
	})
}
