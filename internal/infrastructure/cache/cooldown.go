package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore rate-limits security-sensitive state transitions. A key's mere
// existence blocks a repeat of the action until the TTL expires.
//
// Acquire is SET NX, not read-then-write, so two concurrent transitions on the
// same subject cannot both take the cooldown slot.
type CooldownStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewCooldownStore(rdb *redis.Client, window time.Duration) *CooldownStore {
	return &CooldownStore{rdb: rdb, window: window}
}

func (s *CooldownStore) key(action, subjectID string, targetID ...string) string {
	parts := append([]string{"cooldown", action, subjectID}, targetID...)
	return strings.Join(parts, ":")
}

// Acquire writes the cooldown marker if absent. Returns false when the marker
// already exists (cooldown still running).
func (s *CooldownStore) Acquire(ctx context.Context, action, subjectID string, targetID ...string) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(action, subjectID, targetID...), "1", s.window).Result()
}

// Remaining reports how long the cooldown marker has left, or zero when no
// cooldown is active.
func (s *CooldownStore) Remaining(ctx context.Context, action, subjectID string, targetID ...string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, s.key(action, subjectID, targetID...)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *CooldownStore) Window() time.Duration {
	return s.window
}
