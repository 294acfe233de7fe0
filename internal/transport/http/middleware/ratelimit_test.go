package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	assert.Equal(t, "192.168.1.1", realIP(req))
}

func TestRealIP_IgnoresForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	req.Header.Set("X-Real-Ip", "2.2.2.2")
	assert.Equal(t, "192.168.1.1", realIP(req))
}

func TestRealIP_RewrittenRemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", realIP(req))
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = ip + ":4000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWindowLimiter_ThreePerMinute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewWindowLimiter(ctx, 3, time.Minute).Limit(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1").Code, "request %d", i)
	}
	rr := hit(h, "1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), codeRateLimited)

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, hit(h, "2.2.2.2").Code)
}

func TestWindowLimiter_RejectedRequestsDoNotConsumeTokens(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewWindowLimiter(ctx, 1, 100*time.Millisecond)
	h := rl.Limit(http.HandlerFunc(okHandler))

	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1").Code)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "1.1.1.1").Code)
	}
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, http.StatusOK, hit(h, "1.1.1.1").Code)
}
