package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DirectionCheckin  = "checkin"
	DirectionCheckout = "checkout"
)

func ValidDirection(direction string) bool {
	return direction == DirectionCheckin || direction == DirectionCheckout
}

// Attendance is unique per (user, event, direction).
type Attendance struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_triple,priority:1" json:"user_id"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_attendance_triple,priority:2;index" json:"event_id"`
	Event     *Event    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Direction string    `gorm:"column:type;not null;uniqueIndex:idx_attendance_triple,priority:3" json:"type"`
	ScannedAt time.Time `gorm:"not null" json:"scanned_at"`
}

func (Attendance) TableName() string {
	return "attendance"
}

func (attendance *Attendance) BeforeCreate(tx *gorm.DB) (err error) {
	if attendance.ID == uuid.Nil {
		attendance.ID = uuid.New()
	}
	return
}
