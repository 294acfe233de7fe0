package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-email-otp/internal/domain"
	"github.com/redis/go-redis/v9"
)

// decrementScript takes one attempt only when the hash still exists, so an
// expired or consumed key is never recreated by HINCRBY.
var decrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
`)

// OTPStore keeps each OTP record as a hash at otp:{purpose}:{email}
// with the key expiring at the record's expires_at.
type OTPStore struct {
	client redis.UniversalClient
}

func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(email string, purpose domain.OTPPurpose) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

func (s *OTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	key := otpKey(rec.Email, rec.Purpose)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"email":              rec.Email,
			"purpose":            string(rec.Purpose),
			"code":               rec.Code,
			"expires_at":         rec.ExpiresAt,
			"attempts_remaining": rec.AttemptsRemaining,
			"created_at":         rec.CreatedAt,
		})
		pipe.ExpireAt(ctx, key, time.Unix(rec.ExpiresAt, 0))
		return nil
	})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	cmd := s.client.HGetAll(ctx, otpKey(email, purpose))
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	var rec domain.OTPRecord
	if err := cmd.Scan(&rec); err != nil {
		return nil, fmt.Errorf("decode otp: %w", err)
	}
	return &rec, nil
}

func (s *OTPStore) DecrementAttempts(ctx context.Context, email string, purpose domain.OTPPurpose) (int, error) {
	n, err := decrementScript.Run(ctx, s.client, []string{otpKey(email, purpose)}, "attempts_remaining").Int()
	if errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("decrement otp attempts: %w", err)
	}
	return n, nil
}

func (s *OTPStore) Delete(ctx context.Context, email string, purpose domain.OTPPurpose) (bool, error) {
	n, err := s.client.Del(ctx, otpKey(email, purpose)).Result()
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	return n > 0, nil
}
