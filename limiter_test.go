package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterUnderTest(t *testing.T, maxAttempts int, cooldown time.Duration) (*secondFactorLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newSecondFactorLimiter(client, SecondFactorLimitConfig{MaxAttempts: maxAttempts, Cooldown: cooldown}), mr
}

func TestLimiterAllowsUnderThreshold(t *testing.T) {
	limiter, _ := newLimiterUnderTest(t, 3, time.Minute)
	ctx := context.Background()

	if err := limiter.Check(ctx, "u1"); err != nil {
		t.Fatalf("Check on empty key failed: %v", err)
	}
	if err := limiter.RecordFailure(ctx, "u1"); err != nil {
		t.Fatalf("first failure errored: %v", err)
	}
	if err := limiter.Check(ctx, "u1"); err != nil {
		t.Fatalf("Check under threshold failed: %v", err)
	}
}

func TestLimiterBlocksAtThreshold(t *testing.T) {
	limiter, _ := newLimiterUnderTest(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.RecordFailure(ctx, "u1"); err != nil {
			t.Fatalf("failure %d errored: %v", i, err)
		}
	}
	if err := limiter.RecordFailure(ctx, "u1"); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected rate limit on third failure, got %v", err)
	}
	if err := limiter.Check(ctx, "u1"); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected Check to report the limit, got %v", err)
	}

	// Another user is unaffected.
	if err := limiter.Check(ctx, "u2"); err != nil {
		t.Fatalf("unrelated user throttled: %v", err)
	}
}

func TestLimiterCooldownExpires(t *testing.T) {
	limiter, mr := newLimiterUnderTest(t, 2, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "u1")
	if err := limiter.RecordFailure(ctx, "u1"); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if err := limiter.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected limit lifted after cooldown, got %v", err)
	}
}

func TestLimiterResetClearsCounter(t *testing.T) {
	limiter, _ := newLimiterUnderTest(t, 2, time.Minute)
	ctx := context.Background()

	limiter.RecordFailure(ctx, "u1")
	if err := limiter.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	limiter.RecordFailure(ctx, "u1")
	if err := limiter.Check(ctx, "u1"); err != nil {
		t.Fatalf("expected single post-reset failure under threshold, got %v", err)
	}
}

func TestNilLimiterIsInert(t *testing.T) {
	var limiter *secondFactorLimiter
	ctx := context.Background()

	if err := limiter.Check(ctx, "u1"); err != nil {
		t.Fatalf("nil Check errored: %v", err)
	}
	if err := limiter.RecordFailure(ctx, "u1"); err != nil {
		t.Fatalf("nil RecordFailure errored: %v", err)
	}
	if err := limiter.Reset(ctx, "u1"); err != nil {
		t.Fatalf("nil Reset errored: %v", err)
	}
}

func TestEngineThrottlesSecondFactor(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := fastTestConfig()
	cfg.SecondFactor.MaxAttempts = 2
	cfg.SecondFactor.Cooldown = time.Minute

	clock := newTestClock()
	users := newMockUserStore()
	twoFactor := newMockTwoFactorStore()
	engine, err := New().
		WithConfig(cfg).
		WithUserStore(users).
		WithSessionStore(newMockSessionStore()).
		WithTwoFactorStore(twoFactor).
		WithRedis(client).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	ctx := context.Background()
	user, err := engine.CreateUser(ctx, CreateUserInput{Username: "alice", Email: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	setup, err := engine.GenerateTwoFactorSetup(ctx, user.ID, user.Email)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	code := codeForSecret(t, setup.Secret, cfg.TOTP, clock.Now())
	if err := engine.ConfirmTwoFactor(ctx, user.ID, code); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	clock.Advance(time.Duration(cfg.TOTP.Period) * time.Second)

	if _, err := engine.VerifySecondFactor(ctx, user.ID, "000000", RequestContext{}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if _, err := engine.VerifySecondFactor(ctx, user.ID, "000000", RequestContext{}); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected throttle on second failure, got %v", err)
	}

	// Even the correct code is refused while throttled.
	good := codeForSecret(t, setup.Secret, cfg.TOTP, clock.Now())
	if _, err := engine.VerifySecondFactor(ctx, user.ID, good, RequestContext{}); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected throttle to hold for correct code, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := engine.VerifySecondFactor(ctx, user.ID, good, RequestContext{}); err != nil {
		t.Fatalf("expected success after cooldown, got %v", err)
	}
}
