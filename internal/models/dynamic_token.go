package models

import (
	"time"

	"github.com/google/uuid"
)

type DynamicToken struct {
	Token     string    `gorm:"primary_key" json:"token"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	Event     *Event    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Direction string    `gorm:"column:type;not null" json:"type"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (DynamicToken) TableName() string {
	return "dynamic_qr"
}

// ExpiredAt reports whether the token is unusable at t.
func (token *DynamicToken) ExpiredAt(t time.Time) bool {
	return t.After(token.ExpiresAt)
}
