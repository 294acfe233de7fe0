package domain

import "time"

type Session struct {
	SessionID        string    `json:"id" dynamodbav:"session_id"`
	UserID           string    `json:"user_id" dynamodbav:"user_id"`
	Enable           bool      `json:"enable" dynamodbav:"enable"`
	RefreshToken     string    `json:"-" dynamodbav:"refresh_token"`
	RefreshExpiresAt int64     `json:"refresh_expires_at" dynamodbav:"refresh_expires_at"`
	IPAddress        string    `json:"ip_address,omitempty" dynamodbav:"ip_address"`
	UserAgent        string    `json:"user_agent,omitempty" dynamodbav:"user_agent"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
	User             *User     `json:"user,omitempty" dynamodbav:"-"`
}

// ClientMeta describes the client a session is opened for.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// AuthResult is returned by every flow that signs a user in.
type AuthResult struct {
	Bearer       string
	RefreshToken string
	Session      *Session
}
