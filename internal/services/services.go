package services

import (
	"log/slog"
	"time"

	"github.com/farellandr/hadir/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Services bundles the domain services that handlers and workers share.
type Services struct {
	Tokens        *TokenService
	Attendance    *AttendanceService
	Eligibility   *EligibilityService
	Certificates  *CertificateService
	Payments      *PaymentService
	Registrations *RegistrationService
	Store         storage.Store
	// RotateInterval is how often a presenter screen gets a new token.
	RotateInterval time.Duration
}

type Options struct {
	TokenTTL          time.Duration
	RotateInterval    time.Duration
	MidtransServerKey string
	Logger            *slog.Logger
}

func New(db *gorm.DB, store storage.Store, gateway Gateway, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens := NewTokenService(db, opts.TokenTTL)
	eligibility := NewEligibilityService(db)

	rotate := opts.RotateInterval
	if rotate <= 0 {
		rotate = tokens.TTL()
	}

	return &Services{
		Tokens:         tokens,
		Attendance:     NewAttendanceService(db, tokens, logger),
		Eligibility:    eligibility,
		Certificates:   NewCertificateService(db, store, eligibility, logger),
		Payments:       NewPaymentService(db, gateway, opts.MidtransServerKey, logger),
		Registrations:  NewRegistrationService(db),
		Store:          store,
		RotateInterval: rotate,
	}
}

// Rotator starts nothing; the caller owns Start and Stop.
func (s *Services) Rotator(eventID uuid.UUID, direction string) *TokenRotator {
	return NewTokenRotator(s.Tokens, eventID, direction, s.RotateInterval)
}
