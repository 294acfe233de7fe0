package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-email-otp/internal/domain"
	jwtinfra "github.com/go-email-otp/internal/infrastructure/jwt"
	"github.com/go-email-otp/internal/transport/http/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

// newTestJWTProvider generates a fresh RSA key pair and returns a *jwtinfra.Provider.
func newTestJWTProvider(t *testing.T) *jwtinfra.Provider {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKeys(privKey, &privKey.PublicKey, 24*time.Hour, "test")
}

func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

// bearerReq builds a request with a signed Bearer token for the given user and session.
func bearerReq(t *testing.T, p *jwtinfra.Provider, method, target, userID, sessionID string) *http.Request {
	t.Helper()
	token, err := p.Sign(userID, sessionID, userID+"@example.com")
	require.NoError(t, err)
	r := httptest.NewRequest(method, target, nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

type liveSessions struct{}

func (liveSessions) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	return &domain.Session{SessionID: sessionID, UserID: "u1", Enable: true}, nil
}

// serveAuthed wraps the handler with middleware.Auth before serving. Every
// session belongs to u1 and is live.
func serveAuthed(p *jwtinfra.Provider, h http.HandlerFunc, w http.ResponseWriter, r *http.Request) {
	middleware.Auth(p, liveSessions{})(h).ServeHTTP(w, r)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

// chiRequest injects a chi URL param into the request context.
func chiRequest(method, target, key, value string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
