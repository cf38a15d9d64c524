package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const eventDateLayout = "2006-01-02"

type eventForm struct {
	Name      string
	Date      time.Time
	Location  string
	StartTime *string
	IsPaid    bool
	Price     int64
}

func parseEventForm(c *gin.Context) (*eventForm, error) {
	form := &eventForm{
		Name:     strings.TrimSpace(c.PostForm("name")),
		Location: strings.TrimSpace(c.PostForm("location")),
	}
	if form.Name == "" || form.Location == "" {
		return nil, errors.New("Missing required fields.")
	}

	dateStr := c.PostForm("date")
	date, err := time.Parse(eventDateLayout, dateStr)
	if err != nil {
		if date, err = time.Parse(time.RFC3339, dateStr); err != nil {
			return nil, errors.New("Invalid date format, expected YYYY-MM-DD.")
		}
	}
	form.Date = date

	if startTime := strings.TrimSpace(c.PostForm("start_time")); startTime != "" {
		if _, err := time.Parse("15:04", startTime); err != nil {
			return nil, errors.New("Invalid start time format, expected HH:MM.")
		}
		form.StartTime = &startTime
	}

	if isPaid := c.PostForm("is_paid"); isPaid != "" {
		if form.IsPaid, err = strconv.ParseBool(isPaid); err != nil {
			return nil, errors.New("Invalid is_paid value.")
		}
	}
	if form.IsPaid {
		form.Price, err = strconv.ParseInt(c.PostForm("price"), 10, 64)
		if err != nil || form.Price <= 0 {
			return nil, errors.New("Paid events need a positive price.")
		}
	}
	return form, nil
}

func CreateEvent(c *gin.Context) {
	form, err := parseEventForm(c)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	gormDB, ok := getDB(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	event := models.Event{
		Name:      form.Name,
		Date:      form.Date,
		Location:  form.Location,
		StartTime: form.StartTime,
		IsPaid:    form.IsPaid,
		Price:     form.Price,
	}

	pamphletFile, err := c.FormFile("pamphlet")
	if err == nil {
		pamphletURL, err := helpers.UploadFile(c.Request.Context(), svc.Store, pamphletFile, "pamphlets")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		event.PamphletURL = &pamphletURL
	}

	if err := gormDB.Create(&event).Error; err != nil {
		if event.PamphletURL != nil {
			helpers.DeleteFile(c.Request.Context(), svc.Store, *event.PamphletURL)
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create event.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Event created successfully.",
		"event_id": event.ID,
		"event":    event,
	})
}

func GetEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	gormDB, ok := getDB(c)
	if !ok {
		return
	}

	var event models.Event
	if err := gormDB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving event.")
		return
	}

	var registered int64
	gormDB.Model(&models.Registration{}).Where("event_id = ?", eventID).Count(&registered)

	c.JSON(http.StatusOK, gin.H{
		"event":            event,
		"registered_count": registered,
	})
}

func ListEvents(c *gin.Context) {
	gormDB, ok := getDB(c)
	if !ok {
		return
	}

	pageNum, limitNum, err := helpers.ParsePagination(c)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters.")
		return
	}

	query := gormDB.Model(&models.Event{})
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	switch c.Query("when") {
	case "upcoming":
		query = query.Where("date >= ?", time.Now().UTC().Truncate(24*time.Hour))
	case "past":
		query = query.Where("date < ?", time.Now().UTC().Truncate(24*time.Hour))
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving events.")
		return
	}

	var events []models.Event
	offset := (pageNum - 1) * limitNum
	if err := query.Offset(offset).Limit(limitNum).Order("date DESC").Find(&events).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving events.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events":      events,
		"total":       totalCount,
		"page":        pageNum,
		"limit":       limitNum,
		"total_pages": helpers.TotalPages(totalCount, limitNum),
	})
}

func UpdateEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}

	form, err := parseEventForm(c)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	gormDB, ok := getDB(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	var event models.Event
	if err := gormDB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding event.")
		return
	}

	event.Name = form.Name
	event.Date = form.Date
	event.Location = form.Location
	event.StartTime = form.StartTime
	event.IsPaid = form.IsPaid
	event.Price = form.Price

	var oldPamphlet *string
	pamphletFile, err := c.FormFile("pamphlet")
	if err == nil {
		pamphletURL, err := helpers.UploadFile(c.Request.Context(), svc.Store, pamphletFile, "pamphlets")
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		oldPamphlet = event.PamphletURL
		event.PamphletURL = &pamphletURL
	}

	if err := gormDB.Save(&event).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update event.")
		return
	}

	if oldPamphlet != nil {
		if err := helpers.DeleteFile(c.Request.Context(), svc.Store, *oldPamphlet); err != nil {
			slog.Warn("could not delete old pamphlet", "file", *oldPamphlet, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event updated successfully.",
		"event":   event,
	})
}

// DeleteEvent removes the event and everything hanging off it in one
// transaction. Stored files are removed afterwards on a best effort basis.
func DeleteEvent(c *gin.Context) {
	eventID, ok := eventIDParam(c)
	if !ok {
		return
	}
	gormDB, ok := getDB(c)
	if !ok {
		return
	}
	svc, ok := getServices(c)
	if !ok {
		return
	}

	var event models.Event
	if err := gormDB.Where("id = ?", eventID).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error finding event.")
		return
	}

	var files []string
	if err := gormDB.Model(&models.Certificate{}).Where("event_id = ?", eventID).Pluck("file_url", &files).Error; err != nil {
		slog.Warn("could not list certificate files for event", "event_id", eventID, "error", err)
	}

	err := gormDB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Certificate{},
			&models.CertificateTemplate{},
			&models.Attendance{},
			&models.DynamicToken{},
			&models.Payment{},
			&models.Registration{},
		} {
			if err := tx.Where("event_id = ?", eventID).Delete(model).Error; err != nil {
				return fmt.Errorf("delete %T: %w", model, err)
			}
		}
		return tx.Delete(&event).Error
	})
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete event.")
		return
	}

	if event.PamphletURL != nil {
		files = append(files, *event.PamphletURL)
	}
	for _, file := range files {
		if err := helpers.DeleteFile(c.Request.Context(), svc.Store, file); err != nil {
			slog.Warn("could not delete event file", "file", file, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Event deleted successfully.",
	})
}
