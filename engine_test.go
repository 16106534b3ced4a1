package authcore

import (
	"context"
	"encoding/base32"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	testPassword = "Correct-H0rse!Battery"
	testSecret   = "test-signing-secret-0123456789abcdef"
)

// testClock is a mutable clock shared between a test and its engine.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fastTestConfig keeps argon2 at its floor so tests stay quick.
func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.SigningSecret = []byte(testSecret)
	cfg.EncryptionKey = "test-encryption-key"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.BackupCodes.Memory = 8 * 1024
	cfg.Audit.Enabled = false
	return cfg
}

type testEnv struct {
	engine    *Engine
	users     *mockUserStore
	sessions  *mockSessionStore
	twoFactor *mockTwoFactorStore
	clock     *testClock
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	env := &testEnv{
		users:     newMockUserStore(),
		sessions:  newMockSessionStore(),
		twoFactor: newMockTwoFactorStore(),
		clock:     newTestClock(),
	}

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(env.users).
		WithSessionStore(env.sessions).
		WithTwoFactorStore(env.twoFactor).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	env.engine = engine
	return env
}

func (env *testEnv) createUser(t *testing.T, username string) *User {
	t.Helper()
	user, err := env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return user
}

// enrollTwoFactor runs setup and confirm, returning the setup payload.
func (env *testEnv) enrollTwoFactor(t *testing.T, user *User) *TwoFactorSetup {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.GenerateTwoFactorSetup(ctx, user.ID, user.Email)
	if err != nil {
		t.Fatalf("GenerateTwoFactorSetup failed: %v", err)
	}
	code := codeForSecret(t, setup.Secret, env.engine.config.TOTP, env.clock.Now())
	if err := env.engine.ConfirmTwoFactor(ctx, user.ID, code); err != nil {
		t.Fatalf("ConfirmTwoFactor failed: %v", err)
	}
	// Confirmation burns the current period when replay protection is on.
	env.clock.Advance(time.Duration(env.engine.config.TOTP.Period) * time.Second)
	return setup
}

func codeForSecret(t *testing.T, secret string, cfg TOTPConfig, at time.Time) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	code, err := hotpCode(key, at.Unix()/int64(cfg.Period), cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

func codeForOffset(t *testing.T, secret string, cfg TOTPConfig, at time.Time, offset int64) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	code, err := hotpCode(key, at.Unix()/int64(cfg.Period)+offset, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}
