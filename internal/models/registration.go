package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusFree    = "free"
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

type Registration struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_registration_event_user,priority:1" json:"event_id"`
	Event         *Event    `gorm:"constraint:OnDelete:CASCADE" json:"event,omitempty"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_registration_event_user,priority:2;index" json:"user_id"`
	User          *User     `json:"user,omitempty"`
	PaymentStatus string    `gorm:"not null;default:'pending'" json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (registration *Registration) BeforeCreate(tx *gorm.DB) (err error) {
	if registration.ID == uuid.Nil {
		registration.ID = uuid.New()
	}
	return
}

// InitialPaymentStatus is the status a fresh sign-up gets for the event.
func InitialPaymentStatus(event *Event) string {
	if event.IsPaid {
		return PaymentStatusPending
	}
	return PaymentStatusFree
}
