package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-email-otp/internal/application/otp"
	"github.com/go-email-otp/internal/config"
	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/infrastructure/smtp"
	"github.com/go-email-otp/internal/infrastructure/sns"
	"github.com/go-email-otp/internal/pkg/id"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldEmailVerified = "email_verified"
	fieldPasswordHash  = "password_hash"
)

type SendVerificationOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required,oneof=sign-in email-verification forget-password"`
}

type SignInEmailOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
	Name  string `json:"name" validate:"max=128"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type CheckVerificationOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"required,oneof=sign-in email-verification forget-password"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type ForgetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type Service interface {
	// SendVerificationOTP issues and mails a code. Unknown addresses succeed
	// without sending unless the purpose is sign-in with sign-up enabled.
	SendVerificationOTP(ctx context.Context, email string, purpose domain.OTPPurpose) error
	// DeliverOTP issues and mails a code with no account checks.
	DeliverOTP(ctx context.Context, email string, purpose domain.OTPPurpose) error
	SignInEmailOTP(ctx context.Context, req SignInEmailOTPRequest, meta domain.ClientMeta) (*domain.AuthResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*domain.User, error)
	CheckVerificationOTP(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type sessionStore interface {
	DisableByUser(ctx context.Context, userID string) error
}

type sessionCreator interface {
	Create(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error)
}

type ServiceDeps struct {
	OTP         otp.Service
	UserRepo    userStore
	SessionRepo sessionStore
	Sessions    sessionCreator
	Mailer      smtp.Mailer
	Publisher   sns.Publisher
	Logger      logrus.FieldLogger
	Config      config.OTP
	AppName     string
}

type service struct {
	otp         otp.Service
	userRepo    userStore
	sessionRepo sessionStore
	sessions    sessionCreator
	mailer      smtp.Mailer
	publisher   sns.Publisher
	logger      logrus.FieldLogger
	cfg         config.OTP
	appName     string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		otp:         deps.OTP,
		userRepo:    deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		sessions:    deps.Sessions,
		mailer:      deps.Mailer,
		publisher:   deps.Publisher,
		logger:      deps.Logger,
		cfg:         deps.Config,
		appName:     deps.AppName,
	}
	if s.publisher == nil {
		s.publisher = sns.Noop{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

func (s *service) SendVerificationOTP(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	email = domain.NormalizeEmail(email)
	log := s.logger.WithFields(logrus.Fields{"email": email, "purpose": purpose})

	_, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if purpose != domain.PurposeSignIn || s.cfg.DisableSignUp {
			log.Debug("no account for otp request, skipping delivery")
			return nil
		}
	case err != nil:
		return fmt.Errorf("lookup user: %w", err)
	}
	return s.DeliverOTP(ctx, email, purpose)
}

func (s *service) DeliverOTP(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	email = domain.NormalizeEmail(email)
	code, err := s.otp.Issue(ctx, email, purpose)
	if err != nil {
		return err
	}
	subject, body, err := smtp.RenderOTP(purpose, smtp.OTPData{AppName: s.appName, Code: code, Expiry: s.cfg.Expiry})
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(email, subject, body); err != nil {
		// A code nobody received must not stay redeemable.
		if rerr := s.otp.Revoke(ctx, email, purpose); rerr != nil {
			s.logger.WithError(rerr).WithField("email", email).Warn("failed to revoke undelivered otp")
		}
		return fmt.Errorf("deliver otp: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"email": email, "purpose": purpose}).Info("otp sent")
	return nil
}

func (s *service) SignInEmailOTP(ctx context.Context, req SignInEmailOTPRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	email := domain.NormalizeEmail(req.Email)
	if err := s.otp.Verify(ctx, email, domain.PurposeSignIn, req.OTP); err != nil {
		return nil, err
	}

	u, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if s.cfg.DisableSignUp {
			return nil, fmt.Errorf("sign up disabled: %w", domain.ErrUnauthorized)
		}
		u, err = s.createVerifiedUser(ctx, email, req.Name)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("lookup user: %w", err)
	default:
		if !u.Enable {
			return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
		}
		// Receiving the code proves ownership of the address.
		if !u.EmailVerified {
			if err := s.markVerified(ctx, u); err != nil {
				return nil, err
			}
		}
	}
	return s.sessions.Create(ctx, u, meta)
}

func (s *service) VerifyEmail(ctx context.Context, email, code string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if err := s.otp.Verify(ctx, email, domain.PurposeEmailVerification, code); err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.EmailVerified {
		if err := s.markVerified(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (s *service) CheckVerificationOTP(ctx context.Context, email string, purpose domain.OTPPurpose, code string) error {
	return s.otp.Check(ctx, email, purpose, code)
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := domain.NormalizeEmail(req.Email)
	if err := s.otp.Verify(ctx, email, domain.PurposeForgetPassword, req.OTP); err != nil {
		return err
	}
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{fieldPasswordHash: string(hash)}
	// The reset code was delivered to the address, so it is verified too.
	if !u.EmailVerified {
		updates[fieldEmailVerified] = true
	}
	if err := s.userRepo.Update(ctx, u.UserID, updates); err != nil {
		return err
	}
	if err := s.sessionRepo.DisableByUser(ctx, u.UserID); err != nil {
		s.logger.WithError(err).WithField("user_id", u.UserID).Error("failed to revoke sessions after password reset")
	}
	sns.Emit(ctx, s.publisher, s.logger, sns.NewEvent(sns.EventPasswordReset, u.UserID, u.Email))
	return nil
}

func (s *service) createVerifiedUser(ctx context.Context, email, name string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{
		UserID:        id.New(),
		Email:         email,
		Name:          name,
		EmailVerified: true,
		Enable:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"user_id": u.UserID, "email": email}).Info("user created by email otp sign-in")
	sns.Emit(ctx, s.publisher, s.logger, sns.NewEvent(sns.EventUserCreated, u.UserID, u.Email))
	return u, nil
}

func (s *service) markVerified(ctx context.Context, u *domain.User) error {
	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{fieldEmailVerified: true}); err != nil {
		return err
	}
	u.EmailVerified = true
	sns.Emit(ctx, s.publisher, s.logger, sns.NewEvent(sns.EventEmailVerified, u.UserID, u.Email))
	return nil
}
