package redisstore

import (
	"context"
	"fmt"

	"github.com/go-email-otp/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient parses REDIS_URL and pings the server.
func NewClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
