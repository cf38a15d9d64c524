package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const qrImageSize = 512

type DynamicQRRequest struct {
	EventID uuid.UUID `json:"event_id" binding:"required"`
	Type    string    `json:"type" binding:"required"`
}

// GenerateDynamicQR issues one short-lived token for a presenter screen.
func GenerateDynamicQR(c *gin.Context) {
	var req DynamicQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithReason(c, http.StatusBadRequest, "configuration", "event_id and type are required.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	token, err := svc.Tokens.Issue(c.Request.Context(), req.EventID, req.Type)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token.Token,
		"payload":    helpers.DynamicPayload(token.Token),
		"event_id":   token.EventID,
		"type":       token.Direction,
		"expires_at": token.ExpiresAt,
	})
}

func directionQuery(c *gin.Context) (string, bool) {
	direction := c.DefaultQuery("type", models.DirectionCheckin)
	if !models.ValidDirection(direction) {
		helpers.RespondWithReason(c, http.StatusBadRequest, "configuration", "type must be checkin or checkout.")
		return "", false
	}
	return direction, true
}

func requireEvent(c *gin.Context, eventID uuid.UUID) bool {
	gormDB, ok := getDB(c)
	if !ok {
		return false
	}
	var event models.Event
	if err := gormDB.Select("id").Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return false
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving event.")
		return false
	}
	return true
}

// StaticQR renders the printable, long lived code for an event and direction.
func StaticQR(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	direction, ok := directionQuery(c)
	if !ok {
		return
	}
	if !requireEvent(c, eventID) {
		return
	}

	png, err := helpers.QRCodePNG(helpers.StaticPayload(eventID, direction), qrImageSize)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to render QR code.")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// StreamQR pushes a fresh dynamic code as a server-sent event every rotation
// interval. Rotation stops as soon as the client goes away.
func StreamQR(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	direction, ok := directionQuery(c)
	if !ok {
		return
	}
	if !requireEvent(c, eventID) {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	rotator := svc.Rotator(eventID, direction)
	rotations := rotator.Start(c.Request.Context())
	defer rotator.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		rotation, open := <-rotations
		if !open {
			return false
		}
		if rotation.Err != nil {
			c.SSEvent("error", gin.H{"message": "Failed to issue QR token."})
			return true
		}

		payload := helpers.DynamicPayload(rotation.Token.Token)
		png, err := helpers.QRCodePNG(payload, qrImageSize)
		if err != nil {
			c.SSEvent("error", gin.H{"message": "Failed to render QR code."})
			return true
		}

		c.SSEvent("token", gin.H{
			"token":      rotation.Token.Token,
			"payload":    payload,
			"expires_at": rotation.Token.ExpiresAt.Format(time.RFC3339Nano),
			"image":      "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		})
		return true
	})
}
