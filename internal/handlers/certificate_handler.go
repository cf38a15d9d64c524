package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/middleware"
	"github.com/farellandr/hadir/internal/services"
	"github.com/farellandr/hadir/internal/worker"
	"github.com/gin-gonic/gin"
)

func GetCertificateTemplate(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	template, err := svc.Certificates.Template(c.Request.Context(), eventID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func PutCertificateTemplate(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	var input services.TemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid template. image_url and config are required.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	template, err := svc.Certificates.UpsertTemplate(c.Request.Context(), eventID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Certificate template saved.",
		"template": template,
	})
}

// UploadAsset stores a template background (kind=image) or font (kind=font)
// and returns the reference to put in the template.
func UploadAsset(c *gin.Context) {
	svc, ok := getServices(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "File is required.")
		return
	}

	config := helpers.DefaultImageUploadConfig
	uploadType := "certificate_templates"
	if c.DefaultPostForm("kind", "image") == "font" {
		config = helpers.DefaultFontUploadConfig
		uploadType = "certificate_fonts"
	}

	url, err := helpers.UploadFile(c.Request.Context(), svc.Store, file, uploadType, config)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func ListEligible(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	_, participants, err := svc.Eligibility.Participants(c.Request.Context(), eventID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participants": participants,
		"total":        len(participants),
	})
}

func GenerateCertificate(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	userID, err := helpers.ParseUUIDParam(c, "userId")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid user ID.")
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	certificate, err := svc.Certificates.GenerateForParticipant(c.Request.Context(), eventID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Certificate generated.",
		"certificate": certificate,
	})
}

// GenerateCertificates renders certificates for every eligible participant.
// With ?async=true and a task queue available the work is handed to the
// worker and 202 is returned immediately.
func GenerateCertificates(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	async, _ := strconv.ParseBool(c.Query("async"))
	if enqueuer := middleware.GetEnqueuer(c); async && enqueuer != nil {
		if _, err := svc.Certificates.Template(c.Request.Context(), eventID); err != nil {
			respondServiceError(c, err)
			return
		}

		task, err := worker.NewCertificateBulkTask(eventID)
		if err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to prepare task.")
			return
		}
		info, err := enqueuer.Enqueue(task)
		if err != nil {
			slog.Error("enqueue certificate:bulk", "event_id", eventID, "error", err)
			helpers.RespondWithError(c, http.StatusServiceUnavailable, "Task queue is unavailable.")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"message": "Certificate generation queued.",
			"task_id": info.ID,
		})
		return
	}

	report, err := svc.Certificates.GenerateBulk(c.Request.Context(), eventID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
