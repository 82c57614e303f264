package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPStore holds locally generated one-time email codes and the single-use
// guard for phone codes checked by the external provider.
type OTPStore struct {
	rdb *redis.Client
}

func NewOTPStore(rdb *redis.Client) *OTPStore {
	return &OTPStore{rdb: rdb}
}

func codeKey(identifier, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, identifier)
}

// SaveCode stores an email OTP value under a short TTL. A resend overwrites
// the previous code; only the latest one verifies.
func (s *OTPStore) SaveCode(ctx context.Context, identifier, purpose, code string, ttl time.Duration) error {
	return s.rdb.Set(ctx, codeKey(identifier, purpose), code, ttl).Err()
}

// consumeScript deletes the stored code only when it equals the submitted one.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// ConsumeCode atomically compares the submitted code against the stored one
// and deletes it only on a match, so a matched code can never be replayed
// while a mistyped attempt leaves the stored code in place until it expires.
// Returns false when the codes differ or nothing is stored.
func (s *OTPStore) ConsumeCode(ctx context.Context, identifier, purpose, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{codeKey(identifier, purpose)}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCodeUsed takes the single-use slot for a provider-checked phone code.
// Returns false when the same code was already submitted, closing the window
// where two concurrent verifications could both reach the provider with one
// valid code.
func (s *OTPStore) MarkCodeUsed(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, fmt.Sprintf("otpused:%s:%s", phone, code), "1", ttl).Result()
}

// ReleaseCode frees the single-use slot so the user can retry after a provider
// failure that never consumed the code.
func (s *OTPStore) ReleaseCode(ctx context.Context, phone, code string) error {
	return s.rdb.Del(ctx, fmt.Sprintf("otpused:%s:%s", phone, code)).Err()
}

// AllowReset grants a short-lived password-reset window after a successful
// forgot-password OTP verification.
func (s *OTPStore) AllowReset(ctx context.Context, email string, ttl time.Duration) error {
	return s.rdb.Set(ctx, "pwreset:"+email, "1", ttl).Err()
}

// ConsumeReset checks and clears the password-reset window.
func (s *OTPStore) ConsumeReset(ctx context.Context, email string) (bool, error) {
	_, err := s.rdb.GetDel(ctx, "pwreset:"+email).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
