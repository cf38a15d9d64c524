package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/farellandr/hadir/internal/models"
	"github.com/farellandr/hadir/internal/render"
	"github.com/farellandr/hadir/internal/storage"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const certificateDateLayout = "2 January 2006"

// ParticipantData is what a template's field keys resolve against.
type ParticipantData struct {
	UserID    uuid.UUID
	Name      string
	NPM       string
	EventName string
	Date      string
	Extra     map[string]string
}

// Value resolves a field key. Unknown keys are looked up in Extra.
func (p ParticipantData) Value(key string) string {
	switch strings.ToLower(key) {
	case "name":
		return p.Name
	case "npm", "identifier":
		return p.NPM
	case "event", "event_name":
		return p.EventName
	case "date":
		return p.Date
	}
	return p.Extra[key]
}

type TemplateInput struct {
	ImageURL string                  `json:"image_url" binding:"required"`
	FontURL  *string                 `json:"font_url"`
	FontName *string                 `json:"font_name"`
	Fields   []models.FieldPlacement `json:"config" binding:"required"`
}

type BulkItem struct {
	UserID  uuid.UUID `json:"user_id"`
	Name    string    `json:"name"`
	FileURL string    `json:"file_url"`
}

type BulkFailure struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Error  string    `json:"error"`
}

type BulkReport struct {
	EventID   uuid.UUID     `json:"event_id"`
	Succeeded []BulkItem    `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

type CertificateService struct {
	db          *gorm.DB
	store       storage.Store
	eligibility *EligibilityService
	now         func() time.Time
	logger      *slog.Logger
}

func NewCertificateService(db *gorm.DB, store storage.Store, eligibility *EligibilityService, logger *slog.Logger) *CertificateService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateService{db: db, store: store, eligibility: eligibility, now: utcNow, logger: logger}
}

// UpsertTemplate replaces the event's current template.
func (s *CertificateService) UpsertTemplate(ctx context.Context, eventID uuid.UUID, input TemplateInput) (*models.CertificateTemplate, error) {
	if strings.TrimSpace(input.ImageURL) == "" {
		return nil, fmt.Errorf("%w: image_url is required", ErrInvalidTemplate)
	}
	for i, field := range input.Fields {
		if strings.TrimSpace(field.Key) == "" {
			return nil, fmt.Errorf("%w: field %d has no key", ErrInvalidTemplate, i)
		}
	}

	var event models.Event
	if err := s.db.WithContext(ctx).Select("id").First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, persistence(err)
	}

	template := models.CertificateTemplate{
		EventID:  eventID,
		ImageURL: input.ImageURL,
		FontURL:  input.FontURL,
		FontName: input.FontName,
		Fields:   datatypes.JSONSlice[models.FieldPlacement](input.Fields),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"image_url", "font_url", "font_name", "fields", "updated_at"}),
	}).Create(&template).Error
	if err != nil {
		return nil, persistence(err)
	}
	return s.Template(ctx, eventID)
}

func (s *CertificateService) Template(ctx context.Context, eventID uuid.UUID) (*models.CertificateTemplate, error) {
	var template models.CertificateTemplate
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateMissing
	}
	if err != nil {
		return nil, persistence(err)
	}
	return &template, nil
}

// Generate renders one certificate and makes it the participant's current
// one. The image is stored first; if the record cannot be written the
// stored image is removed again.
func (s *CertificateService) Generate(ctx context.Context, template *models.CertificateTemplate, data ParticipantData) (*models.Certificate, error) {
	if template == nil {
		return nil, ErrTemplateMissing
	}

	background, err := s.loadBackground(ctx, template.ImageURL)
	if err != nil {
		return nil, err
	}

	fonts, err := render.NewFontSet()
	if err != nil {
		return nil, err
	}
	defer fonts.Close()
	s.loadFont(ctx, fonts, template)

	fields := make([]render.Field, 0, len(template.Fields))
	for _, placement := range template.Fields {
		fields = append(fields, render.Field{Placement: placement, Value: data.Value(placement.Key)})
	}

	img, err := render.Compose(background, fonts, fields)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}

	key := fmt.Sprintf("certificates/certificate_%s_%s_%d.png", template.EventID, data.UserID, s.now().UnixNano())
	fileURL, err := s.store.Put(ctx, key, &buf)
	if err != nil {
		return nil, fmt.Errorf("upload certificate: %w", err)
	}

	var previous models.Certificate
	hadPrevious := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", template.EventID, data.UserID).
		First(&previous).Error == nil

	certificate := models.Certificate{
		EventID:    template.EventID,
		UserID:     data.UserID,
		TemplateID: template.ID,
		FileURL:    fileURL,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"template_id", "file_url", "updated_at"}),
	}).Create(&certificate).Error
	if err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), fileURL); delErr != nil {
			s.logger.Warn("orphaned certificate file", "file_url", fileURL, "error", delErr)
		}
		return nil, persistence(err)
	}

	var saved models.Certificate
	if err := s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", template.EventID, data.UserID).
		First(&saved).Error; err != nil {
		return nil, persistence(err)
	}

	if hadPrevious && previous.FileURL != "" && previous.FileURL != fileURL {
		if err := s.store.Delete(ctx, previous.FileURL); err != nil {
			s.logger.Warn("could not remove replaced certificate", "file_url", previous.FileURL, "error", err)
		}
	}
	return &saved, nil
}

func (s *CertificateService) loadBackground(ctx context.Context, ref string) (image.Image, error) {
	rc, err := s.store.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load template image: %w", err)
	}
	defer rc.Close()
	return render.DecodeImage(rc)
}

// loadFont falls back to the default font on any failure.
func (s *CertificateService) loadFont(ctx context.Context, fonts *render.FontSet, template *models.CertificateTemplate) {
	if template.FontURL == nil || *template.FontURL == "" {
		return
	}
	name := ""
	if template.FontName != nil {
		name = *template.FontName
	}
	data, err := storage.ReadAll(ctx, s.store, *template.FontURL)
	if err == nil {
		err = fonts.LoadCustom(name, data)
	}
	if err != nil {
		s.logger.Warn("custom font unavailable, using default", "font_url", *template.FontURL, "error", err)
	}
}

// GenerateForParticipant checks eligibility and renders with the event's
// current template.
func (s *CertificateService) GenerateForParticipant(ctx context.Context, eventID, userID uuid.UUID) (*models.Certificate, error) {
	event, status, err := s.eligibility.Check(ctx, eventID, userID)
	if errors.Is(err, ErrNotRegistered) {
		return nil, ErrNotEligible
	}
	if err != nil {
		return nil, err
	}
	if !status.Eligible {
		return nil, ErrNotEligible
	}

	template, err := s.Template(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, template, participantData(event, &status.User))
}

// GenerateBulk renders certificates for every eligible participant. One
// participant's failure is recorded and does not stop the rest.
func (s *CertificateService) GenerateBulk(ctx context.Context, eventID uuid.UUID) (*BulkReport, error) {
	template, err := s.Template(ctx, eventID)
	if err != nil {
		return nil, err
	}

	event, participants, err := s.eligibility.Participants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{
		EventID:   eventID,
		Succeeded: []BulkItem{},
		Failed:    []BulkFailure{},
	}
	for i := range participants {
		user := participants[i].User
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, BulkFailure{UserID: user.ID, Name: user.Name, Error: err.Error()})
			continue
		}
		certificate, err := s.Generate(ctx, template, participantData(event, &user))
		if err != nil {
			s.logger.Error("certificate generation failed", "event_id", eventID, "user_id", user.ID, "error", err)
			report.Failed = append(report.Failed, BulkFailure{UserID: user.ID, Name: user.Name, Error: err.Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, BulkItem{UserID: user.ID, Name: user.Name, FileURL: certificate.FileURL})
	}

	s.logger.Info("bulk certificate generation finished",
		"event_id", eventID,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
	)
	return report, nil
}

func (s *CertificateService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Certificate, error) {
	var certificates []models.Certificate
	err := s.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&certificates).Error
	if err != nil {
		return nil, persistence(err)
	}
	return certificates, nil
}

func participantData(event *models.Event, user *models.User) ParticipantData {
	return ParticipantData{
		UserID:    user.ID,
		Name:      user.Name,
		NPM:       user.NPM,
		EventName: event.Name,
		Date:      event.Date.Format(certificateDateLayout),
		Extra:     participantExtra(event, user),
	}
}

func participantExtra(event *models.Event, user *models.User) map[string]string {
	extra := map[string]string{
		"id":       user.ID.String(),
		"user_id":  user.ID.String(),
		"email":    user.Email,
		"event_id": event.ID.String(),
		"location": event.Location,
	}
	if event.StartTime != nil {
		extra["start_time"] = *event.StartTime
	}
	return extra
}
