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
	ErrSignupRateLimited      = errors.New("signup rate limited")
	ErrSignupRedisUnavailable = errors.New("signup redis unavailable")
)

// SignupConfig throttles account creation per email and per IP within a
// fixed window. MaxAttempts <= 0 disables the limiter.
type SignupConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Window           time.Duration
}

type SignupLimiter struct {
	redis  redis.UniversalClient
	config SignupConfig
}

func NewSignupLimiter(redisClient redis.UniversalClient, cfg SignupConfig) *SignupLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &SignupLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one attempt for email and ip.
func (l *SignupLimiter) Enforce(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxAttempts <= 0 {
		return nil
	}
	if err := l.enforceKey(ctx, signupEmailKey(email)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" && ip != "unknown" {
		if err := l.enforceKey(ctx, signupIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *SignupLimiter) enforceKey(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignupRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSignupRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrSignupRateLimited
	}

	return nil
}

func signupEmailKey(email string) string {
	return "sias:signup:email:" + strings.ToLower(strings.TrimSpace(email))
}

func signupIPKey(ip string) string {
	return "sias:signup:ip:" + ip
}
