package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// OTP verification failures. Each wraps the generic sentinel it maps to.
var (
	ErrInvalidOTP      = fmt.Errorf("invalid otp: %w", ErrUnauthorized)
	ErrOTPExpired      = fmt.Errorf("otp expired: %w", ErrUnauthorized)
	ErrTooManyAttempts = fmt.Errorf("too many attempts: %w", ErrForbidden)
)
