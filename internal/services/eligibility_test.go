package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEligible_Table(t *testing.T) {
	eventID, userID := uuid.New(), uuid.New()
	checkin := []models.Attendance{{EventID: eventID, UserID: userID, Direction: models.DirectionCheckin}}
	checkout := []models.Attendance{{EventID: eventID, UserID: userID, Direction: models.DirectionCheckout}}

	statuses := []string{
		models.PaymentStatusFree,
		models.PaymentStatusPending,
		models.PaymentStatusPaid,
		models.PaymentStatusFailed,
	}

	for _, paidEvent := range []bool{false, true} {
		for _, status := range statuses {
			for _, hasIn := range []bool{false, true} {
				for _, hasOut := range []bool{false, true} {
					name := fmt.Sprintf("paid=%t/%s/in=%t/out=%t", paidEvent, status, hasIn, hasOut)
					t.Run(name, func(t *testing.T) {
						reg := &models.Registration{EventID: eventID, UserID: userID, PaymentStatus: status}
						var ins, outs []models.Attendance
						if hasIn {
							ins = checkin
						}
						if hasOut {
							outs = checkout
						}

						want := hasIn && hasOut && (!paidEvent || status == models.PaymentStatusPaid)
						assert.Equal(t, want, IsEligible(reg, ins, outs, paidEvent))
						// Same answer on a second call.
						assert.Equal(t, want, IsEligible(reg, ins, outs, paidEvent))
					})
				}
			}
		}
	}
}

func TestIsEligible_IgnoresOtherParticipants(t *testing.T) {
	eventID, userID := uuid.New(), uuid.New()
	reg := &models.Registration{EventID: eventID, UserID: userID, PaymentStatus: models.PaymentStatusFree}

	someoneElse := []models.Attendance{{EventID: eventID, UserID: uuid.New(), Direction: models.DirectionCheckin}}
	otherEvent := []models.Attendance{{EventID: uuid.New(), UserID: userID, Direction: models.DirectionCheckout}}
	assert.False(t, IsEligible(reg, someoneElse, otherEvent, false))

	// A checkout record passed as a checkin does not count.
	swapped := []models.Attendance{{EventID: eventID, UserID: userID, Direction: models.DirectionCheckout}}
	assert.False(t, IsEligible(reg, swapped, swapped, false))

	assert.False(t, IsEligible(nil, nil, nil, false))
}

func TestEligibilityService_FreeEventProgression(t *testing.T) {
	db := newTestDB(t)
	svc := NewEligibilityService(db)
	event := createEvent(t, db, 0)
	user := createUser(t, db, "hana")

	registrations := NewRegistrationService(db)
	_, err := registrations.Register(context.Background(), event.ID, user.ID)
	require.NoError(t, err)

	check := func() bool {
		_, status, err := svc.Check(context.Background(), event.ID, user.ID)
		require.NoError(t, err)
		return status.Eligible
	}

	assert.False(t, check())

	attend(t, db, event, user, models.DirectionCheckin)
	assert.False(t, check())

	attend(t, db, event, user, models.DirectionCheckout)
	assert.True(t, check())
}

func TestEligibilityService_Report(t *testing.T) {
	db := newTestDB(t)
	svc := NewEligibilityService(db)
	event := createEvent(t, db, 50000)

	paid := createUser(t, db, "indra")
	pending := createUser(t, db, "joko")
	register(t, db, event, paid, models.PaymentStatusPaid)
	register(t, db, event, pending, models.PaymentStatusPending)
	for _, user := range []*models.User{paid, pending} {
		attend(t, db, event, user, models.DirectionCheckin)
		attend(t, db, event, user, models.DirectionCheckout)
	}

	_, report, err := svc.Report(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, report, 2)
	for _, row := range report {
		assert.NotNil(t, row.Checkin)
		assert.NotNil(t, row.Checkout)
		assert.Equal(t, row.User.ID == paid.ID, row.Eligible)
	}

	_, eligible, err := svc.Participants(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, paid.ID, eligible[0].User.ID)
	assert.Equal(t, paid.Name, eligible[0].User.Name)

	_, _, err = svc.Check(context.Background(), event.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotRegistered)

	_, _, err = svc.Report(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEventNotFound)
}
