package services

import (
	"context"
	"sync"
	"time"

	"github.com/farellandr/hadir/internal/models"
	"github.com/google/uuid"
)

type Rotation struct {
	Token *models.DynamicToken
	Err   error
}

// TokenRotator issues a fresh token for one event and direction on a fixed
// interval while it is running. Nothing is issued after Stop returns.
type TokenRotator struct {
	tokens    *TokenService
	eventID   uuid.UUID
	direction string
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTokenRotator(tokens *TokenService, eventID uuid.UUID, direction string, interval time.Duration) *TokenRotator {
	if interval <= 0 {
		interval = tokens.TTL()
	}
	return &TokenRotator{tokens: tokens, eventID: eventID, direction: direction, interval: interval}
}

// Start issues the first token immediately and then one per interval. The
// returned channel is closed once the rotator stops, either through Stop
// or because ctx ends. Calling Start on a running rotator returns nil.
func (r *TokenRotator) Start(ctx context.Context) <-chan Rotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	out := make(chan Rotation)

	go func() {
		defer close(r.done)
		defer close(out)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			token, err := r.tokens.Issue(ctx, r.eventID, r.direction)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Rotation{Token: token, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stop cancels the rotator and waits for its goroutine to exit.
func (r *TokenRotator) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
