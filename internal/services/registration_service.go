package services

import (
	"context"
	"errors"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistrationService struct {
	db *gorm.DB
}

func NewRegistrationService(db *gorm.DB) *RegistrationService {
	return &RegistrationService{db: db}
}

// Register signs a participant up for an event. Free events start as
// "free", paid events as "pending" until the gateway confirms payment.
// Signing up twice returns ErrAlreadyRegistered.
func (s *RegistrationService) Register(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, persistence(err)
	}

	registration := models.Registration{
		EventID:       eventID,
		UserID:        userID,
		PaymentStatus: models.InitialPaymentStatus(&event),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&registration)
	if result.Error != nil {
		if helpers.IsUniqueViolation(result.Error) {
			return nil, ErrAlreadyRegistered
		}
		return nil, persistence(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyRegistered
	}
	return &registration, nil
}

func (s *RegistrationService) Get(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	var registration models.Registration
	err := s.db.WithContext(ctx).Where("event_id = ? AND user_id = ?", eventID, userID).First(&registration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, persistence(err)
	}
	return &registration, nil
}

func (s *RegistrationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	var registrations []models.Registration
	err := s.db.WithContext(ctx).
		Preload("Event").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&registrations).Error
	if err != nil {
		return nil, persistence(err)
	}
	return registrations, nil
}
