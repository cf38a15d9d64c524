package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Date        time.Time `gorm:"not null" json:"date"`
	Location    string    `gorm:"not null" json:"location"`
	StartTime   *string   `json:"start_time,omitempty"`
	IsPaid      bool      `gorm:"not null;default:false" json:"is_paid"`
	Price       int64     `gorm:"not null;default:0" json:"price"`
	PamphletURL *string   `json:"pamphlet_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}
