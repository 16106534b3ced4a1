package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// CreateUser provisions a new identity. The email is normalized to
// lowercase before storage, the role defaults to [RoleViewer], and the
// candidate password runs through the full policy with every violation
// reported at once. A duplicate username or email surfaces as
// ErrUserExists from the store.
func (e *Engine) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Violations: []string{"username and a valid email are required"}}
	}

	role := in.Role
	if role == "" {
		role = RoleViewer
	}
	if !ValidRole(role) {
		return nil, &ValidationError{Violations: []string{"unknown role " + string(role)}}
	}

	if violations := e.config.Policy.Validate(in.Password, username); len(violations) > 0 {
		e.metricInc(MetricPasswordRejected)
		e.emitAudit(ctx, auditEventAccountCreateRejected, false, "", "", "", ErrPolicyViolation, nil)
		return nil, &ValidationError{Violations: violations}
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Role:         role,
		Active:       true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreateRejected, false, "", "", "", ErrUserExists, func() map[string]string {
				return map[string]string{"username": username}
			})
		}
		return nil, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, user.ID, "", "", nil, nil)
	return user, nil
}

// ChangePassword is the self-service flow. The current password must
// verify, the new one must clear policy, and it may not match the current
// password or any hash in the bounded history. Existing sessions survive
// a self-service change.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	now := e.now()

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.Active {
		return ErrAccountDisabled
	}

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricPasswordRejected)
		e.emitAudit(ctx, auditEventPasswordChangeRejected, false, userID, "", "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if violations := e.config.Policy.Validate(newPassword, user.Username); len(violations) > 0 {
		e.metricInc(MetricPasswordRejected)
		e.emitAudit(ctx, auditEventPasswordChangeRejected, false, userID, "", "", ErrPolicyViolation, nil)
		return &ValidationError{Violations: violations}
	}

	reused, err := e.passwordSeenBefore(newPassword, user)
	if err != nil {
		return err
	}
	if reused {
		e.metricInc(MetricPasswordRejected)
		e.emitAudit(ctx, auditEventPasswordChangeRejected, false, userID, "", "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	history := pushHistory(user.PasswordHistory, user.PasswordHash, e.config.Password.HistoryDepth)
	if err := e.users.UpdatePassword(ctx, userID, hash, history, false, now); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, userID, "", "", nil, nil)
	return nil
}

// ResetPassword is the administrative flow: no current-password proof,
// the user must change the password at next login, and every live session
// of the user dies immediately. adminID attributes the reset in the
// session revocations and the audit stream.
func (e *Engine) ResetPassword(ctx context.Context, userID, newPassword, adminID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	now := e.now()

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if violations := e.config.Policy.Validate(newPassword, user.Username); len(violations) > 0 {
		e.metricInc(MetricPasswordRejected)
		return &ValidationError{Violations: violations}
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	history := pushHistory(user.PasswordHistory, user.PasswordHash, e.config.Password.HistoryDepth)
	if err := e.users.UpdatePassword(ctx, userID, hash, history, true, now); err != nil {
		return err
	}

	if _, err := e.sessions.RevokeAllForUser(ctx, userID, "password_reset", adminID, now); err != nil {
		return err
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordReset, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"reset_by": adminID}
	})
	return nil
}

// passwordSeenBefore checks the candidate against the current hash and
// the retained history. Argon2 salts differ per hash, so each entry needs
// a full verify rather than a digest comparison.
func (e *Engine) passwordSeenBefore(candidate string, user *User) (bool, error) {
	ok, err := e.hasher.Verify(candidate, user.PasswordHash)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	for _, old := range user.PasswordHistory {
		ok, err := e.hasher.Verify(candidate, old)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// pushHistory prepends the outgoing hash and trims to depth. Depth zero
// disables history retention entirely.
func pushHistory(history []string, outgoing string, depth int) []string {
	if depth <= 0 {
		return nil
	}
	next := make([]string, 0, depth)
	next = append(next, outgoing)
	for _, h := range history {
		if len(next) == depth {
			break
		}
		next = append(next, h)
	}
	return next
}
