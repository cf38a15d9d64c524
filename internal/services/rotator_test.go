package services

import (
	"context"
	"testing"
	"time"

	"github.com/farellandr/hadir/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRotator_IssuesUntilStopped(t *testing.T) {
	db := newTestDB(t)
	event := createEvent(t, db, 0)
	tokens := NewTokenService(db, time.Minute)
	rotator := NewTokenRotator(tokens, event.ID, models.DirectionCheckin, 20*time.Millisecond)

	rotations := rotator.Start(context.Background())
	require.NotNil(t, rotations)
	assert.Nil(t, rotator.Start(context.Background()), "second Start on a running rotator")

	seen := make(map[string]bool)
	for len(seen) < 3 {
		select {
		case rotation := <-rotations:
			require.NoError(t, rotation.Err)
			seen[rotation.Token.Token] = true
		case <-time.After(2 * time.Second):
			t.Fatal("rotator stalled")
		}
	}

	rotator.Stop()
	_, open := <-rotations
	assert.False(t, open)

	var before int64
	db.Model(&models.DynamicToken{}).Count(&before)
	time.Sleep(60 * time.Millisecond)
	var after int64
	db.Model(&models.DynamicToken{}).Count(&after)
	assert.Equal(t, before, after, "no tokens after Stop")

	rotator.Stop()
}

func TestTokenRotator_StopsWithContext(t *testing.T) {
	db := newTestDB(t)
	event := createEvent(t, db, 0)
	rotator := NewTokenRotator(NewTokenService(db, 0), event.ID, models.DirectionCheckout, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	rotations := rotator.Start(ctx)
	first := <-rotations
	require.NoError(t, first.Err)

	cancel()
	select {
	case _, open := <-rotations:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("rotator did not stop on cancel")
	}
	rotator.Stop()
}
