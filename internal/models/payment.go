package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment.ID doubles as the gateway order id.
type Payment struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Event         *Event    `gorm:"constraint:OnDelete:CASCADE" json:"event,omitempty"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User     `gorm:"foreignKey:UserID" json:"-"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Method        string    `gorm:"not null" json:"method"`
	Status        string    `gorm:"not null;default:'pending'" json:"status"`
	GatewayStatus string    `json:"gateway_status,omitempty"`
	SnapToken     string    `json:"snap_token,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (payment *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return
}
