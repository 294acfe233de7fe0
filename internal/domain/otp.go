package domain

import (
	"fmt"
	"strings"
	"time"
)

// OTPPurpose scopes a one-time password to the flow it was issued for.
type OTPPurpose string

const (
	PurposeSignIn            OTPPurpose = "sign-in"
	PurposeEmailVerification OTPPurpose = "email-verification"
	PurposeForgetPassword    OTPPurpose = "forget-password"
)

// ParseOTPPurpose validates a purpose received on the wire.
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch p := OTPPurpose(s); p {
	case PurposeSignIn, PurposeEmailVerification, PurposeForgetPassword:
		return p, nil
	}
	return "", fmt.Errorf("unknown otp type %q: %w", s, ErrBadRequest)
}

// OTPRecord is a single live one-time password.
// PK: email, SK: purpose. One record per pair; issuing again overwrites it.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OTPRecord struct {
	Email             string     `json:"email" dynamodbav:"email" redis:"email"`
	Purpose           OTPPurpose `json:"purpose" dynamodbav:"purpose" redis:"purpose"`
	Code              string     `json:"-" dynamodbav:"code" redis:"code"` // plain or bcrypt hash, see OTP_STORAGE
	ExpiresAt         int64      `json:"expires_at" dynamodbav:"expires_at" redis:"expires_at"`
	AttemptsRemaining int        `json:"attempts_remaining" dynamodbav:"attempts_remaining" redis:"attempts_remaining"`
	CreatedAt         int64      `json:"created_at" dynamodbav:"created_at" redis:"created_at"`
}

// Expired reports whether the record is past its expiry at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.Unix() >= r.ExpiresAt
}

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
