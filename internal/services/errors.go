package services

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("missing or invalid event/direction")
	ErrPersistence       = errors.New("persistence failure")
	ErrEventNotFound     = errors.New("event not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrNotRegistered     = errors.New("not registered for this event")
	ErrNotEligible       = errors.New("participant is not eligible for a certificate")
	ErrTemplateMissing   = errors.New("certificate template not configured")
	ErrInvalidTemplate   = errors.New("invalid certificate template")
	ErrInvalidSignature  = errors.New("invalid notification signature")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrEventIsFree       = errors.New("event is free")
	ErrGateway           = errors.New("payment gateway failure")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrEmailTaken        = errors.New("email already registered")
)

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

type RejectionReason string

const (
	ReasonInvalidFormat     RejectionReason = "invalid_format"
	ReasonTokenNotFound     RejectionReason = "token_not_found"
	ReasonTokenExpired      RejectionReason = "token_expired"
	ReasonScopeMismatch     RejectionReason = "scope_mismatch"
	ReasonNotRegistered     RejectionReason = "not_registered"
	ReasonPaymentIncomplete RejectionReason = "payment_incomplete"
)

// Rejection is a scan that was understood but refused. The caller shows
// Reason to the participant; nothing was written.
type Rejection struct {
	Reason RejectionReason
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return "scan rejected: " + string(r.Reason)
	}
	return fmt.Sprintf("scan rejected: %s: %s", r.Reason, r.Detail)
}

func reject(reason RejectionReason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

// RejectionOf unwraps err into a *Rejection when it is one.
func RejectionOf(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}
