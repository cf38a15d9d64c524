package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldPlacement positions one text value on a certificate background.
// CharSpacing is expressed in thousandths of an em.
type FieldPlacement struct {
	Key         string  `json:"key"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	FontSize    float64 `json:"font_size"`
	FontFamily  string  `json:"font_family,omitempty"`
	Color       string  `json:"color,omitempty"`
	TextAlign   string  `json:"text_align,omitempty"`
	LineHeight  float64 `json:"line_height,omitempty"`
	CharSpacing float64 `json:"char_spacing,omitempty"`
	ScaleX      float64 `json:"scale_x,omitempty"`
	ScaleY      float64 `json:"scale_y,omitempty"`
}

type CertificateTemplate struct {
	ID        uuid.UUID                            `gorm:"type:uuid;primary_key" json:"id"`
	EventID   uuid.UUID                            `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	Event     *Event                               `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ImageURL  string                               `gorm:"not null" json:"image_url"`
	FontURL   *string                              `json:"font_url,omitempty"`
	FontName  *string                              `json:"font_name,omitempty"`
	Fields    datatypes.JSONSlice[FieldPlacement] `json:"config"`
	CreatedAt time.Time                            `json:"created_at"`
	UpdatedAt time.Time                            `json:"updated_at"`
}

func (template *CertificateTemplate) BeforeCreate(tx *gorm.DB) (err error) {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	return
}

// Certificate is unique per (event, user); regeneration overwrites it.
type Certificate struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_certificate_event_user,priority:1" json:"event_id"`
	Event      *Event    `gorm:"constraint:OnDelete:CASCADE" json:"event,omitempty"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_certificate_event_user,priority:2;index" json:"user_id"`
	TemplateID uuid.UUID `gorm:"type:uuid" json:"template_id"`
	FileURL    string    `gorm:"not null" json:"file_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (certificate *Certificate) BeforeCreate(tx *gorm.DB) (err error) {
	if certificate.ID == uuid.Nil {
		certificate.ID = uuid.New()
	}
	return
}
