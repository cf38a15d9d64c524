package services

import (
	"context"
	"errors"

	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IsEligible decides whether a registration earns a certificate. It is the
// only place this rule is expressed; records for other participants or
// events in checkins/checkouts are ignored.
func IsEligible(registration *models.Registration, checkins, checkouts []models.Attendance, eventIsPaid bool) bool {
	if registration == nil {
		return false
	}
	if eventIsPaid && registration.PaymentStatus != models.PaymentStatusPaid {
		return false
	}
	if !hasRecord(registration, checkins, models.DirectionCheckin) {
		return false
	}
	if !hasRecord(registration, checkouts, models.DirectionCheckout) {
		return false
	}
	return true
}

func hasRecord(registration *models.Registration, records []models.Attendance, direction string) bool {
	for _, record := range records {
		if record.UserID == registration.UserID &&
			record.EventID == registration.EventID &&
			record.Direction == direction {
			return true
		}
	}
	return false
}

// ParticipantStatus is one row of the attendance report.
type ParticipantStatus struct {
	Registration models.Registration `json:"registration"`
	User         models.User         `json:"user"`
	Checkin      *models.Attendance  `json:"checkin,omitempty"`
	Checkout     *models.Attendance  `json:"checkout,omitempty"`
	Eligible     bool                `json:"eligible"`
}

type EligibilityService struct {
	db *gorm.DB
}

func NewEligibilityService(db *gorm.DB) *EligibilityService {
	return &EligibilityService{db: db}
}

// Report returns every registration of the event with its attendance and
// eligibility.
func (s *EligibilityService) Report(ctx context.Context, eventID uuid.UUID) (*models.Event, []ParticipantStatus, error) {
	return s.report(ctx, eventID, nil)
}

// Participants returns only the eligible registrations.
func (s *EligibilityService) Participants(ctx context.Context, eventID uuid.UUID) (*models.Event, []ParticipantStatus, error) {
	event, all, err := s.report(ctx, eventID, nil)
	if err != nil {
		return nil, nil, err
	}
	eligible := make([]ParticipantStatus, 0, len(all))
	for _, status := range all {
		if status.Eligible {
			eligible = append(eligible, status)
		}
	}
	return event, eligible, nil
}

// Check evaluates a single participant. ErrNotRegistered is returned when
// there is no registration at all.
func (s *EligibilityService) Check(ctx context.Context, eventID, userID uuid.UUID) (*models.Event, *ParticipantStatus, error) {
	event, statuses, err := s.report(ctx, eventID, &userID)
	if err != nil {
		return nil, nil, err
	}
	if len(statuses) == 0 {
		return event, nil, ErrNotRegistered
	}
	return event, &statuses[0], nil
}

func (s *EligibilityService) report(ctx context.Context, eventID uuid.UUID, userID *uuid.UUID) (*models.Event, []ParticipantStatus, error) {
	db := s.db.WithContext(ctx)

	var event models.Event
	if err := db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, persistence(err)
	}

	registrations := db.Preload("User").Where("event_id = ?", eventID)
	attendance := db.Where("event_id = ?", eventID)
	if userID != nil {
		registrations = registrations.Where("user_id = ?", *userID)
		attendance = attendance.Where("user_id = ?", *userID)
	}

	var regs []models.Registration
	if err := registrations.Order("created_at").Find(&regs).Error; err != nil {
		return nil, nil, persistence(err)
	}

	var records []models.Attendance
	if err := attendance.Find(&records).Error; err != nil {
		return nil, nil, persistence(err)
	}

	checkins := make(map[uuid.UUID][]models.Attendance)
	checkouts := make(map[uuid.UUID][]models.Attendance)
	for _, record := range records {
		switch record.Direction {
		case models.DirectionCheckin:
			checkins[record.UserID] = append(checkins[record.UserID], record)
		case models.DirectionCheckout:
			checkouts[record.UserID] = append(checkouts[record.UserID], record)
		}
	}

	statuses := make([]ParticipantStatus, 0, len(regs))
	for i := range regs {
		reg := regs[i]
		status := ParticipantStatus{
			Registration: reg,
			Eligible:     IsEligible(&reg, checkins[reg.UserID], checkouts[reg.UserID], event.IsPaid),
		}
		if reg.User != nil {
			status.User = *reg.User
			status.Registration.User = nil
		}
		if in := checkins[reg.UserID]; len(in) > 0 {
			status.Checkin = &in[0]
		}
		if out := checkouts[reg.UserID]; len(out) > 0 {
			status.Checkout = &out[0]
		}
		statuses = append(statuses, status)
	}
	return &event, statuses, nil
}
