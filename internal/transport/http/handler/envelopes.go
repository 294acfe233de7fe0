package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-email-otp/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// StatusEnvelope answers flows that only report success.
type StatusEnvelope struct {
	Success bool `json:"success"`
}

// SafeUser is the user as exposed over HTTP.
type SafeUser struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created"`
	UpdatedAt     time.Time `json:"updated"`
}

// SafeSession is the session as exposed over HTTP.
type SafeSession struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshExpiresAt int64     `json:"refresh_expires_at"`
	IPAddress        string    `json:"ip_address,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	CreatedAt        time.Time `json:"created"`
}

// AuthEnvelope wraps every response that signs a user in.
type AuthEnvelope struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	Session      *SafeSession `json:"session,omitempty"`
	User         *SafeUser    `json:"user,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *SafeSession `json:"session"`
	User    *SafeUser    `json:"user,omitempty"`
}

// UserEnvelope wraps flows that return a user without a session.
type UserEnvelope struct {
	Status bool      `json:"status"`
	User   *SafeUser `json:"user"`
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{
		ID:            u.UserID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toSafeSession(s *domain.Session) *SafeSession {
	if s == nil {
		return nil
	}
	return &SafeSession{
		ID:               s.SessionID,
		UserID:           s.UserID,
		RefreshExpiresAt: s.RefreshExpiresAt,
		IPAddress:        s.IPAddress,
		UserAgent:        s.UserAgent,
		CreatedAt:        s.CreatedAt,
	}
}

func authEnvelope(res *domain.AuthResult) AuthEnvelope {
	env := AuthEnvelope{AccessToken: res.Bearer, RefreshToken: res.RefreshToken, Session: toSafeSession(res.Session)}
	if res.Session != nil {
		env.User = toSafeUser(res.Session.User)
	}
	return env
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
