package services

import (
	"context"
	"errors"
	"time"

	"github.com/farellandr/hadir/internal/helpers"
	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultTokenTTL = 10 * time.Second

type TokenService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewTokenService(db *gorm.DB, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{db: db, ttl: ttl, now: utcNow}
}

// WithClock replaces the time source, for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for (eventID, direction) and records it before
// returning, so a token that is shown has always been stored.
func (s *TokenService) Issue(ctx context.Context, eventID uuid.UUID, direction string) (*models.DynamicToken, error) {
	if eventID == uuid.Nil || !models.ValidDirection(direction) {
		return nil, ErrConfiguration
	}

	var event models.Event
	if err := s.db.WithContext(ctx).Select("id").First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, persistence(err)
	}

	value, err := helpers.NewDynamicToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	token := &models.DynamicToken{
		Token:     value,
		EventID:   eventID,
		Direction: direction,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, persistence(err)
	}
	return token, nil
}

// Lookup returns nil without error when the token was never issued.
func (s *TokenService) Lookup(ctx context.Context, value string) (*models.DynamicToken, error) {
	var token models.DynamicToken
	err := s.db.WithContext(ctx).Where("token = ?", value).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}
	return &token, nil
}

// PurgeExpired deletes tokens that expired more than retention ago.
func (s *TokenService) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	result := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.DynamicToken{})
	if result.Error != nil {
		return 0, persistence(result.Error)
	}
	return result.RowsAffected, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}
