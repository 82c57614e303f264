package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResendCounterStore caps OTP dispatches per identifier per purpose per UTC
// calendar day. The key embeds the day, so counters reset naturally at
// midnight; EXPIREAT is belt only, keeping dead keys from accumulating.
type ResendCounterStore struct {
	rdb *redis.Client
}

func NewResendCounterStore(rdb *redis.Client) *ResendCounterStore {
	return &ResendCounterStore{rdb: rdb}
}

func (s *ResendCounterStore) key(identifier, purpose string, day time.Time) string {
	return fmt.Sprintf("resend:%s:%s:%s", purpose, identifier, day.UTC().Format("2006-01-02"))
}

// Count returns today's dispatch count for (identifier, purpose).
func (s *ResendCounterStore) Count(ctx context.Context, identifier, purpose string, now time.Time) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key(identifier, purpose, now)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Increment bumps today's counter and sets its expiry to end of day on first use.
func (s *ResendCounterStore) Increment(ctx context.Context, identifier, purpose string, now time.Time) (int64, error) {
	key := s.key(identifier, purpose, now)
	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		endOfDay := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		if err := s.rdb.ExpireAt(ctx, key, endOfDay).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
