package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUserDefaultsAndNormalization(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())

	user, err := env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: "  alice  ",
		Email:    "Alice@Example.COM",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected trimmed username, got %q", user.Username)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected lowercase email, got %q", user.Email)
	}
	if user.Role != RoleViewer {
		t.Fatalf("expected default role %s, got %s", RoleViewer, user.Role)
	}
	if !user.Active {
		t.Fatal("new user must be active")
	}
	if user.PasswordHash == testPassword || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
}

func TestCreateUserRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())
	env.createUser(t, "alice")

	_, err := env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for username, got %v", err)
	}

	_, err = env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: testPassword,
	})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for email, got %v", err)
	}
}

func TestCreateUserRejectsBadRole(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())

	_, err := env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: testPassword,
		Role:     Role("superuser"),
	})
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected policy violation for unknown role, got %v", err)
	}
}

func TestCreateUserReportsAllPolicyViolations(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())

	_, err := env.engine.CreateUser(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1234",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) < 2 {
		t.Fatalf("expected at least 2 violations for a common password, got %v", verr.Violations)
	}
}

func TestChangePasswordHappyPath(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())
	user := env.createUser(t, "alice")
	ctx := context.Background()

	const next = "N3xt-Passw0rd!Here"
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, next); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := env.engine.Login(ctx, "alice", testPassword, RequestContext{}); err == nil {
		t.Fatal("old password must stop working")
	}
	if _, err := env.engine.Login(ctx, "alice", next, RequestContext{}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())
	user := env.createUser(t, "alice")

	err := env.engine.ChangePassword(context.Background(), user.ID, "not-the-password-1!A", "N3xt-Passw0rd!Here")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	cfg := fastTestConfig()
	cfg.Password.HistoryDepth = 3
	env := newTestEnv(t, cfg)
	user := env.createUser(t, "alice")
	ctx := context.Background()

	// Same-as-current is reuse.
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected reuse rejection for current password, got %v", err)
	}

	const second = "Sec0nd-Passw0rd!Xy"
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, second); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// The original is now history and still rejected.
	if err := env.engine.ChangePassword(ctx, user.ID, second, testPassword); !errors.Is(err, ErrPasswordReuse) {
		t.Fatalf("expected reuse rejection from history, got %v", err)
	}
}

func TestChangePasswordHistoryIsBounded(t *testing.T) {
	cfg := fastTestConfig()
	cfg.Password.HistoryDepth = 1
	env := newTestEnv(t, cfg)
	user := env.createUser(t, "alice")
	ctx := context.Background()

	const second = "Sec0nd-Passw0rd!Xy"
	const third = "Th1rd-Passw0rd!Zw"
	if err := env.engine.ChangePassword(ctx, user.ID, testPassword, second); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if err := env.engine.ChangePassword(ctx, user.ID, second, third); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// With depth 1 only `second` is retained; the original fell out.
	if err := env.engine.ChangePassword(ctx, user.ID, third, testPassword); err != nil {
		t.Fatalf("expected original password to be reusable after falling out of history, got %v", err)
	}
}

func TestResetPasswordForcesChangeAndRevokesSessions(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())
	user := env.createUser(t, "alice")
	ctx := context.Background()

	result, err := env.engine.Login(ctx, "alice", testPassword, RequestContext{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const reset = "R3set-Passw0rd!Qq"
	if err := env.engine.ResetPassword(ctx, user.ID, reset, "admin-1"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	if _, _, err := env.engine.VerifyAccessToken(ctx, result.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected prior session dead after reset, got %v", err)
	}

	stored, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !stored.MustChangePassword {
		t.Fatal("reset must force a password change")
	}

	session, _ := env.sessions.GetByID(ctx, result.SessionID)
	if session == nil || !session.Revoked || session.RevokedBy != "admin-1" {
		t.Fatal("revocation must be attributed to the admin")
	}
}

func TestResetPasswordStillChecksPolicy(t *testing.T) {
	env := newTestEnv(t, fastTestConfig())
	user := env.createUser(t, "alice")

	err := env.engine.ResetPassword(context.Background(), user.ID, "weak", "admin-1")
	if !errors.Is(err, ErrPolicyViolation) {
		t.Fatalf("expected policy violation, got %v", err)
	}
}
