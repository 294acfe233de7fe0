package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-email-otp/internal/domain"
	jwtinfra "github.com/go-email-otp/internal/infrastructure/jwt"
)

type contextKey string

const claimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type sessionLookup interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Auth returns middleware that validates the Bearer JWT, rejects tokens whose
// session was logged out or revoked, and injects claims into context.
func Auth(verifier tokenVerifier, sessions sessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
				return
			}
			sess, err := sessions.Get(r.Context(), claims.SessionID)
			if err != nil || !sess.Enable || sess.UserID != claims.UserID {
				writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "session expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores claims on ctx.
func WithClaims(ctx context.Context, c *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}
