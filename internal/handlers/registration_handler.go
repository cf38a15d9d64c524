package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterForEvent(c *gin.Context) {
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

	registration, err := svc.Registrations.Register(c.Request.Context(), eventID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Registered successfully.",
		"registration": registration,
	})
}

func GetMyRegistration(c *gin.Context) {
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

	registration, err := svc.Registrations.Get(c.Request.Context(), eventID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	_, status, err := svc.Eligibility.Check(c.Request.Context(), eventID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registration": registration,
		"checkin":      status.Checkin,
		"checkout":     status.Checkout,
		"eligible":     status.Eligible,
	})
}
