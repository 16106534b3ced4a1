package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned on a failed credential check. It
	// never reveals whether the identifier or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is the match target for [LockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for inactive accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUserNotFound is returned by lookups addressed by user ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username or email is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrPolicyViolation is the match target for [ValidationError].
	ErrPolicyViolation = errors.New("password policy violation")
	// ErrPasswordReuse rejects a new password matching the current one or
	// any entry in the bounded password history.
	ErrPasswordReuse = errors.New("new password was used before")
	// ErrInvalidCode is returned for a failed TOTP or backup-code check.
	// It does not reveal which check failed.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrSecondFactorRateLimited is returned when second-factor attempts
	// for a user are throttled.
	ErrSecondFactorRateLimited = errors.New("second factor attempts rate limited")
	// ErrSecondFactorUnavailable is returned when the throttle backend
	// cannot be reached.
	ErrSecondFactorUnavailable = errors.New("second factor backend unavailable")
	// ErrTwoFactorNotConfigured is returned when an operation requires an
	// existing two-factor record and none is present.
	ErrTwoFactorNotConfigured = errors.New("two-factor not configured")
	// ErrTwoFactorAlreadyEnabled rejects a second enrollment.
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor already enabled")
	// ErrTokenInvalid is the single external verdict for bad tokens. The
	// concrete defect (signature, structure, wrong type, revoked session)
	// is recorded in audit metadata only.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is surfaced by Refresh so callers can distinguish an
	// expired refresh token from a forged one.
	ErrTokenExpired = errors.New("token expired")
	// ErrEngineNotReady is returned by methods on an unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// LockedError reports a temporarily locked account with the precise unlock
// time. It matches [ErrAccountLocked] via errors.Is.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

// CredentialsError reports a failed credential check together with the
// number of attempts left before lockout (floored at zero). It matches
// [ErrInvalidCredentials] via errors.Is.
type CredentialsError struct {
	Remaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (%d attempts remaining)", e.Remaining)
}

func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }

// ValidationError carries every violated password-policy rule, never just
// the first. It matches [ErrPolicyViolation] via errors.Is.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "password " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrPolicyViolation }
