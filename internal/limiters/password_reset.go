package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetConfig throttles reset requests per email and per IP within a
// fixed window. MaxAttempts <= 0 disables the limiter.
type PasswordResetConfig struct {
	EnableIPThrottle bool
	Window           time.Duration
	MaxAttempts      int
}

type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxAttempts <= 0 {
		return nil
	}
	if err := l.enforceFixedWindow(ctx, requestEmailKey(email)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" && ip != "unknown" {
		if err := l.enforceFixedWindow(ctx, requestIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrResetRateLimited
	}

	return nil
}

func requestEmailKey(email string) string {
	return "sias:pwr:req:" + strings.ToLower(strings.TrimSpace(email))
}

func requestIPKey(ip string) string {
	return "sias:pwr:ip:" + ip
}
