package http

import (
	"context"

	"github.com/go-email-otp/internal/application/otp"
	"github.com/go-email-otp/internal/domain"
	jwtinfra "github.com/go-email-otp/internal/infrastructure/jwt"
	"github.com/go-email-otp/internal/infrastructure/smtp"
	"github.com/go-email-otp/internal/infrastructure/sns"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
	DisableByUser(ctx context.Context, userID string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	SessionRepo SessionRepository
	OTPStore    otp.Store
	Mailer      smtp.Mailer
	Publisher   sns.Publisher
	JWTProvider *jwtinfra.Provider
}
