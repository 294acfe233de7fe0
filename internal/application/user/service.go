package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/infrastructure/sns"
	"github.com/go-email-otp/internal/pkg/id"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest, meta domain.ClientMeta) (*domain.AuthResult, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type sessionCreator interface {
	Create(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error)
}

type otpDeliverer interface {
	DeliverOTP(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

type ServiceDeps struct {
	UserRepo                 userStore
	Sessions                 sessionCreator
	OTP                      otpDeliverer // only used with SendVerificationOnSignUp
	Publisher                sns.Publisher
	Logger                   logrus.FieldLogger
	SendVerificationOnSignUp bool
}

type service struct {
	repo             userStore
	sessions         sessionCreator
	otp              otpDeliverer
	publisher        sns.Publisher
	logger           logrus.FieldLogger
	sendVerification bool
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:             deps.UserRepo,
		sessions:         deps.Sessions,
		otp:              deps.OTP,
		publisher:        deps.Publisher,
		logger:           deps.Logger,
		sendVerification: deps.SendVerificationOnSignUp,
	}
	if s.publisher == nil {
		s.publisher = sns.Noop{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	email := domain.NormalizeEmail(req.Email)
	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	sns.Emit(ctx, s.publisher, s.logger, sns.NewEvent(sns.EventUserCreated, u.UserID, u.Email))

	if s.sendVerification && s.otp != nil {
		if err := s.otp.DeliverOTP(ctx, email, domain.PurposeEmailVerification); err != nil {
			s.logger.WithError(err).WithField("user_id", u.UserID).Warn("failed to send verification otp on sign up")
		}
	}
	return s.sessions.Create(ctx, u, meta)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}
