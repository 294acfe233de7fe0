package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-email-otp/internal/config"
	"github.com/go-email-otp/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Store persists one OTP record per (email, purpose).
type Store interface {
	Put(ctx context.Context, r *domain.OTPRecord) error
	// Get returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error)
	// DecrementAttempts atomically takes one attempt and returns what is left.
	// A negative result means the record had none left to take.
	DecrementAttempts(ctx context.Context, email string, purpose domain.OTPPurpose) (int, error)
	// Delete reports whether a record was actually removed.
	Delete(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error)
}

type Service interface {
	// Issue generates a fresh code, replacing any live one for the same email and purpose.
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error)
	// Verify checks the code and invalidates it on success.
	Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	// Check validates the code without invalidating it.
	Check(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	Revoke(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

type ServiceDeps struct {
	Store  Store
	Config config.OTP
	Logger logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

type service struct {
	store  Store
	cfg    config.OTP
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &service{store: deps.Store, cfg: deps.Config, logger: logger, now: now}
}

func (s *service) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) (string, error) {
	email = domain.NormalizeEmail(email)
	code, err := Generate(s.cfg.Length)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	stored := code
	if s.cfg.Storage == config.OTPStorageHashed {
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash otp: %w", err)
		}
		stored = string(hash)
	}
	now := s.now()
	rec := &domain.OTPRecord{
		Email:             email,
		Purpose:           purpose,
		Code:              stored,
		ExpiresAt:         now.Add(s.cfg.Expiry).Unix(),
		AttemptsRemaining: s.cfg.AllowedAttempts,
		CreatedAt:         now.Unix(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"email": email, "purpose": purpose, "expires_at": rec.ExpiresAt}).Debug("otp issued")
	return code, nil
}

func (s *service) Verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return s.verify(ctx, domain.NormalizeEmail(email), purpose, code, true)
}

func (s *service) Check(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return s.verify(ctx, domain.NormalizeEmail(email), purpose, code, false)
}

func (s *service) Revoke(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	_, err := s.store.Delete(ctx, domain.NormalizeEmail(email), purpose)
	return err
}

func (s *service) verify(ctx context.Context, email string, purpose domain.OTPPurpose, code string, consume bool) error {
	log := s.logger.WithFields(logrus.Fields{"email": email, "purpose": purpose})

	rec, err := s.store.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidOTP
		}
		return fmt.Errorf("load otp: %w", err)
	}
	if rec.Expired(s.now()) {
		s.discard(ctx, log, email, purpose)
		return domain.ErrOTPExpired
	}
	if rec.AttemptsRemaining <= 0 {
		s.discard(ctx, log, email, purpose)
		return domain.ErrTooManyAttempts
	}
	if !s.matches(rec.Code, code) {
		remaining, err := s.store.DecrementAttempts(ctx, email, purpose)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.ErrInvalidOTP
		case err != nil:
			return fmt.Errorf("record otp attempt: %w", err)
		case remaining < 0:
			s.discard(ctx, log, email, purpose)
			return domain.ErrTooManyAttempts
		}
		log.WithField("attempts_remaining", remaining).Info("otp mismatch")
		return domain.ErrInvalidOTP
	}
	if !consume {
		return nil
	}
	deleted, err := s.store.Delete(ctx, email, purpose)
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	if !deleted {
		// Another request consumed the same code first.
		return domain.ErrInvalidOTP
	}
	return nil
}

func (s *service) matches(stored, code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if s.cfg.Storage == config.OTPStorageHashed {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(code)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1
}

func (s *service) discard(ctx context.Context, log logrus.FieldLogger, email string, purpose domain.OTPPurpose) {
	if _, err := s.store.Delete(ctx, email, purpose); err != nil {
		log.WithError(err).Warn("failed to delete otp record")
	}
}

// Generate returns n random decimal digits.
func Generate(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
