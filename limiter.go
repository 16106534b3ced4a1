package authcore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// secondFactorLimiter throttles TOTP and backup-code attempts per user,
// independently of the account lockout (which only counts password
// failures). A nil limiter is inert — the throttle is an optional hardening
// layer, never a correctness dependency.
type secondFactorLimiter struct {
	redis  *redis.Client
	config SecondFactorLimitConfig
}

func newSecondFactorLimiter(client *redis.Client, cfg SecondFactorLimitConfig) *secondFactorLimiter {
	if client == nil {
		return nil
	}
	return &secondFactorLimiter{redis: client, config: cfg}
}

func (l *secondFactorLimiter) key(userID string) string {
	return "a2f:" + userID
}

func (l *secondFactorLimiter) Check(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrSecondFactorRateLimited
	}
	return nil
}

func (l *secondFactorLimiter) RecordFailure(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(userID), l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrSecondFactorRateLimited
	}
	return nil
}

func (l *secondFactorLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}
	return nil
}
