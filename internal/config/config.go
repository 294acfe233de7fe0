package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// OTP storage modes.
const (
	OTPStoragePlain  = "plain"
	OTPStorageHashed = "hashed"
)

// OTP backends.
const (
	OTPStoreDynamo = "dynamo"
	OTPStoreRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"3000"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppName  string `env:"APP_NAME" envDefault:"go-email-otp"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	JWTPrivateKeyPath  string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath   string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry          time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"720h"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	SNSTopicARN string `env:"SNS_TOPIC_ARN"` // auth events are not published when empty

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"3"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	// Honour X-Forwarded-For / X-Real-Ip only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	OTP OTP
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	Sessions string `env:"DYNAMO_TABLE_SESSIONS" envDefault:"sessions"`
	OTPs     string `env:"DYNAMO_TABLE_OTPS" envDefault:"email_otps"`
}

// OTP configures code issuance and the email OTP sign-in flow.
type OTP struct {
	Length                   int           `env:"OTP_LENGTH" envDefault:"6"`
	Expiry                   time.Duration `env:"OTP_EXPIRY" envDefault:"300s"`
	AllowedAttempts          int           `env:"OTP_ALLOWED_ATTEMPTS" envDefault:"3"`
	Storage                  string        `env:"OTP_STORAGE" envDefault:"plain"`
	Store                    string        `env:"OTP_STORE" envDefault:"dynamo"`
	SendVerificationOnSignUp bool          `env:"OTP_SEND_VERIFICATION_ON_SIGN_UP" envDefault:"false"`
	DisableSignUp            bool          `env:"OTP_DISABLE_SIGN_UP" envDefault:"false"`
}

// Validate reports the first invalid OTP setting.
func (o OTP) Validate() error {
	if o.Length < 4 || o.Length > 12 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 12, got %d", o.Length)
	}
	if o.Expiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY must be positive, got %s", o.Expiry)
	}
	if o.AllowedAttempts < 1 {
		return fmt.Errorf("OTP_ALLOWED_ATTEMPTS must be at least 1, got %d", o.AllowedAttempts)
	}
	switch o.Storage {
	case OTPStoragePlain, OTPStorageHashed:
	default:
		return fmt.Errorf("OTP_STORAGE must be %q or %q, got %q", OTPStoragePlain, OTPStorageHashed, o.Storage)
	}
	switch o.Store {
	case OTPStoreDynamo, OTPStoreRedis:
	default:
		return fmt.Errorf("OTP_STORE must be %q or %q, got %q", OTPStoreDynamo, OTPStoreRedis, o.Store)
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.OTP.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax < 1 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	return &cfg, nil
}
