package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanRequest is what the scanner submits: the decoded QR text, the event
// and direction the scanner page was opened for, and who is scanning.
type ScanRequest struct {
	Code      string
	EventID   uuid.UUID
	Direction string
	UserID    uuid.UUID
}

type ScanResult struct {
	Attendance *models.Attendance
	// Created is false when the participant had already been recorded for
	// this direction and the scan was treated as a no-op.
	Created bool
	Source  string
}

type AttendanceService struct {
	db     *gorm.DB
	tokens *TokenService
	now    func() time.Time
	logger *slog.Logger
}

func NewAttendanceService(db *gorm.DB, tokens *TokenService, logger *slog.Logger) *AttendanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceService{db: db, tokens: tokens, now: utcNow, logger: logger}
}

func (s *AttendanceService) WithClock(now func() time.Time) *AttendanceService {
	s.now = now
	return s
}

// ValidateAndRecord runs the scan through format, scope, registration and
// payment checks, stopping at the first failure, then records attendance
// at most once per (user, event, direction).
func (s *AttendanceService) ValidateAndRecord(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.EventID == uuid.Nil || req.UserID == uuid.Nil || !models.ValidDirection(req.Direction) {
		return nil, ErrConfiguration
	}

	code, err := helpers.ParseScannedCode(req.Code)
	if err != nil {
		return nil, reject(ReasonInvalidFormat, "")
	}

	if err := s.checkScope(ctx, code, req); err != nil {
		return nil, err
	}

	var registration models.Registration
	err = s.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", req.EventID, req.UserID).
		First(&registration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject(ReasonNotRegistered, "")
	}
	if err != nil {
		return nil, persistence(err)
	}

	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", req.EventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, persistence(err)
	}
	if event.IsPaid && registration.PaymentStatus != models.PaymentStatusPaid {
		return nil, reject(ReasonPaymentIncomplete, registration.PaymentStatus)
	}

	// The scanning session may have been torn down while we were checking.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attendance, created, err := s.record(ctx, req)
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("attendance recorded",
			"event_id", req.EventID,
			"user_id", req.UserID,
			"type", req.Direction,
			"source", code.Kind.String(),
		)
	}
	return &ScanResult{Attendance: attendance, Created: created, Source: code.Kind.String()}, nil
}

func (s *AttendanceService) checkScope(ctx context.Context, code *helpers.ScannedCode, req ScanRequest) error {
	switch code.Kind {
	case helpers.CodeStatic:
		if code.EventID != req.EventID {
			return reject(ReasonScopeMismatch, "code is for another event")
		}
		if code.Direction != req.Direction {
			return reject(ReasonScopeMismatch, "code is for "+code.Direction)
		}
		return nil

	case helpers.CodeDynamic:
		token, err := s.tokens.Lookup(ctx, code.Token)
		if err != nil {
			return err
		}
		if token == nil {
			return reject(ReasonTokenNotFound, "")
		}
		if token.ExpiredAt(s.now()) {
			return reject(ReasonTokenExpired, "")
		}
		if token.EventID != req.EventID {
			return reject(ReasonScopeMismatch, "token is for another event")
		}
		if token.Direction != req.Direction {
			return reject(ReasonScopeMismatch, "token is for "+token.Direction)
		}
		return nil
	}
	return reject(ReasonInvalidFormat, "")
}

// record inserts unless the triple already exists. The unique index is the
// arbiter, so two concurrent first scans still produce one row.
func (s *AttendanceService) record(ctx context.Context, req ScanRequest) (*models.Attendance, bool, error) {
	attendance := models.Attendance{
		UserID:    req.UserID,
		EventID:   req.EventID,
		Direction: req.Direction,
		ScannedAt: s.now(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&attendance)
	if result.Error != nil && !helpers.IsUniqueViolation(result.Error) {
		return nil, false, persistence(result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return &attendance, true, nil
	}

	var existing models.Attendance
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ? AND type = ?", req.UserID, req.EventID, req.Direction).
		First(&existing).Error
	if err != nil {
		return nil, false, persistence(err)
	}
	return &existing, false, nil
}

// ForEvent lists attendance rows for an event, oldest first.
func (s *AttendanceService) ForEvent(ctx context.Context, eventID uuid.UUID) ([]models.Attendance, error) {
	var rows []models.Attendance
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("scanned_at").Find(&rows).Error; err != nil {
		return nil, persistence(err)
	}
	return rows, nil
}
