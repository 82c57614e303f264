package cache

import (
	"github.com/bandhan-app/bandhan-api/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client for the ephemeral gating state: cooldown
// markers, resend counters and one-time email OTP values. Durable flags live
// in DynamoDB only; nothing here survives its TTL.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
