package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTwoFactorMaxAttempts = 5
	defaultTwoFactorCooldown    = 10 * time.Minute
	defaultTwoFactorPrefix      = "gid:2fa"
)

var (
	ErrTwoFactorRateLimited = errors.New("two-factor rate limited")
	ErrTwoFactorUnavailable = errors.New("two-factor limiter unavailable")
)

// TwoFactorConfig holds thresholds for the two-factor limiter. Zero values
// fall back to 5 attempts / 10 minutes.
type TwoFactorConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
	Prefix      string
}

// TwoFactorLimiter counts failed second-factor attempts (codes and recovery
// codes) per user in a fixed window that starts at the first failure.
type TwoFactorLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
	prefix      string
}

func NewTwoFactorLimiter(redisClient redis.UniversalClient, cfg TwoFactorConfig) *TwoFactorLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTwoFactorMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTwoFactorCooldown
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultTwoFactorPrefix
	}
	return &TwoFactorLimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd, prefix: prefix}
}

func (l *TwoFactorLimiter) key(userID string) string {
	return l.prefix + ":att:" + userID
}

// Check returns ErrTwoFactorRateLimited once the window is exhausted.
func (l *TwoFactorLimiter) Check(ctx context.Context, userID string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrTwoFactorRateLimited
	}
	return nil
}

// RecordFailure counts one failure. The returned error is
// ErrTwoFactorRateLimited when this failure exhausted the window.
func (l *TwoFactorLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	k := l.key(userID)
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrTwoFactorRateLimited
	}
	return nil
}

// Reset clears the user's window after a successful attempt.
func (l *TwoFactorLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || l.redis == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	return nil
}

// Remaining returns how many attempts are left in the current window.
func (l *TwoFactorLimiter) Remaining(ctx context.Context, userID string) (int, error) {
	if l == nil || l.redis == nil {
		return int(defaultTwoFactorMaxAttempts), nil
	}
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return int(l.maxAttempts), nil
		}
		return 0, fmt.Errorf("%w: %v", ErrTwoFactorUnavailable, err)
	}
	if count >= l.maxAttempts {
		return 0, nil
	}
	return int(l.maxAttempts - count), nil
}
