package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMFAMaxAttempts = 5
	defaultMFACooldown    = 5 * time.Minute
)

var (
	ErrMFARateLimited = errors.New("mfa rate limited")
	ErrMFAUnavailable = errors.New("mfa limiter unavailable")
)

// MFAConfig holds thresholds for failed MFA code submissions. Zero values
// fall back to 5 attempts per 5 minutes, one pending-token lifetime.
type MFAConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// MFALimiter counts failed TOTP and backup code submissions per identity.
type MFALimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
}

func NewMFALimiter(redisClient redis.UniversalClient, cfg MFAConfig) *MFALimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultMFAMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultMFACooldown
	}
	return &MFALimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd}
}

func (l *MFALimiter) key(userID string) string {
	return "sias:mfa:att:" + userID
}

func (l *MFALimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrMFARateLimited
	}
	return nil
}

func (l *MFALimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
		}
	}
	return nil
}

func (l *MFALimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMFAUnavailable, err)
	}
	return nil
}
