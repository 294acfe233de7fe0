package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-email-otp/internal/domain"
	"github.com/go-email-otp/internal/infrastructure/sns"
	"github.com/go-email-otp/internal/pkg/id"
	pkgtoken "github.com/go-email-otp/internal/pkg/token"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Service interface {
	// Create opens a session for an already authenticated user.
	Create(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error)
	Login(ctx context.Context, req LoginRequest, meta domain.ClientMeta) (*domain.AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (bearer, newRefreshToken string, err error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

type jwtSigner interface {
	Sign(userID, sessionID, email string) (string, error)
}

type ServiceDeps struct {
	UserRepo        userStore
	SessionRepo     sessionStore
	JWTProvider     jwtSigner
	Publisher       sns.Publisher
	Logger          logrus.FieldLogger
	RefreshTokenDur time.Duration
}

type service struct {
	userRepo        userStore
	sessionRepo     sessionStore
	jwtProvider     jwtSigner
	publisher       sns.Publisher
	logger          logrus.FieldLogger
	refreshTokenDur time.Duration
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		userRepo:        deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		publisher:       deps.Publisher,
		logger:          deps.Logger,
		refreshTokenDur: deps.RefreshTokenDur,
	}
	if s.publisher == nil {
		s.publisher = sns.Noop{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

func (s *service) Create(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*domain.AuthResult, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, sess.SessionID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	sess.User = u

	e := sns.NewEvent(sns.EventSessionCreated, u.UserID, u.Email)
	e.SessionID = sess.SessionID
	sns.Emit(ctx, s.publisher, s.logger, e)

	return &domain.AuthResult{Bearer: bearer, RefreshToken: refreshToken, Session: sess}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest, meta domain.ClientMeta) (*domain.AuthResult, error) {
	u, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	// Accounts created through email OTP sign-in have no password.
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if !u.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	return s.Create(ctx, u, meta)
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Disable(ctx, sessionID)
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	if sess.RefreshExpiresAt < time.Now().Unix() {
		return "", "", fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return "", "", err
	}
	if !u.Enable {
		return "", "", fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	newExpiry := time.Now().Add(s.refreshTokenDur).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return "", "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, sess.SessionID, u.Email)
	if err != nil {
		return "", "", err
	}
	return bearer, newToken, nil
}
