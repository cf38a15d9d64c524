package handlers

import (
	"net/http"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/services"
	"github.com/gin-gonic/gin"
)

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ScanAttendance validates a scanned code for the signed-in participant.
func ScanAttendance(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithReason(c, http.StatusBadRequest, string(services.ReasonInvalidFormat), "code and type are required.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	result, err := svc.Attendance.ValidateAndRecord(c.Request.Context(), services.ScanRequest{
		Code:      req.Code,
		EventID:   eventID,
		Direction: req.Type,
		UserID:    userID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	status := http.StatusCreated
	message := "Attendance recorded."
	if !result.Created {
		status = http.StatusOK
		message = "Attendance was already recorded."
	}
	c.JSON(status, gin.H{
		"message":    message,
		"created":    result.Created,
		"attendance": result.Attendance,
	})
}

// AttendanceReport lists every registration with its attendance and
// certificate eligibility.
func AttendanceReport(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	event, participants, err := svc.Eligibility.Report(c.Request.Context(), eventID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var checkedIn, checkedOut, eligible int
	for _, p := range participants {
		if p.Checkin != nil {
			checkedIn++
		}
		if p.Checkout != nil {
			checkedOut++
		}
		if p.Eligible {
			eligible++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"event":        event,
		"participants": participants,
		"summary": gin.H{
			"registered":  len(participants),
			"checked_in":  checkedIn,
			"checked_out": checkedOut,
			"eligible":    eligible,
		},
	})
}
