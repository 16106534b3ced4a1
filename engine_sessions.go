package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"

	"github.com/gnanirahulnutakki/authcore/jwt"
)

// tokenDigest is the only form in which a token ever reaches storage.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (e *Engine) issueSession(ctx context.Context, user *User, rc RequestContext, mfaVerified bool) (*LoginResult, error) {
	now := e.now()
	sid := uuid.NewString()

	access, expiresAt, err := e.tokens.CreateAccess(user.ID, sid, mfaVerified, now)
	if err != nil {
		return nil, err
	}
	refresh, _, err := e.tokens.CreateRefresh(user.ID, sid, mfaVerified, now)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:                sid,
		UserID:            user.ID,
		TokenDigest:       tokenDigest(access),
		ExpiresAt:         expiresAt,
		LastActiveAt:      now,
		IP:                e.clip(rc.IP),
		UserAgent:         e.clip(rc.UserAgent),
		DeviceFingerprint: rc.DeviceFingerprint,
		TwoFactorVerified: mfaVerified,
		RememberDevice:    rc.RememberDevice,
		CreatedAt:         now,
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, sid, rc.IP, nil, nil)

	return &LoginResult{
		UserID:       user.ID,
		User:         user,
		SessionID:    sid,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// VerifyAccessToken validates token and resolves the session and user
// behind it. Every defect — bad signature, expiry, wrong token type,
// unknown digest, revoked or stale session — collapses to ErrTokenInvalid
// externally; the concrete reason is recorded in the audit stream only. An
// inactive user is the one distinguished failure. On success the session's
// last-active timestamp advances.
func (e *Engine) VerifyAccessToken(ctx context.Context, token string) (*User, *Session, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	now := e.now()

	claims, err := e.tokens.ParseAccess(token)
	if err != nil {
		e.rejectToken(ctx, "", "claims: "+err.Error())
		return nil, nil, ErrTokenInvalid
	}

	session, err := e.sessions.GetByDigest(ctx, tokenDigest(token))
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		e.rejectToken(ctx, claims.UID, "unknown_digest")
		return nil, nil, ErrTokenInvalid
	}
	if session.Revoked {
		e.rejectToken(ctx, claims.UID, "revoked")
		return nil, nil, ErrTokenInvalid
	}
	if !session.ExpiresAt.After(now) {
		e.rejectToken(ctx, claims.UID, "expired_row")
		return nil, nil, ErrTokenInvalid
	}
	if session.UserID != claims.UID {
		e.rejectToken(ctx, claims.UID, "subject_mismatch")
		return nil, nil, ErrTokenInvalid
	}

	user, err := e.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.rejectToken(ctx, claims.UID, "user_missing")
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if !user.Active {
		return nil, nil, ErrAccountDisabled
	}

	if err := e.sessions.Touch(ctx, session.ID, now); err != nil {
		return nil, nil, err
	}
	session.LastActiveAt = now

	return user, session, nil
}

// Refresh validates a refresh token and mints a fresh access token plus a
// fresh session row. The two-factor flag of the original login carries
// forward. An expired refresh token returns ErrTokenExpired so callers can
// prompt a re-login; every other defect returns ErrTokenInvalid. A refresh
// token whose originating session was revoked is dead as well — revocation
// is session-wide, not access-token-wide.
func (e *Engine) Refresh(ctx context.Context, refreshToken string, rc RequestContext) (*RefreshResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	claims, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", "", rc.IP, mapTokenError(err), nil)
		return nil, mapTokenError(err)
	}

	origin, err := e.sessions.GetByID(ctx, claims.SID)
	if err != nil {
		return nil, err
	}
	if origin == nil || origin.Revoked || origin.UserID != claims.UID {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, claims.UID, claims.SID, rc.IP, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "origin_session_dead"}
		})
		return nil, ErrTokenInvalid
	}

	user, err := e.users.GetByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}

	sid := uuid.NewString()
	access, expiresAt, err := e.tokens.CreateAccess(user.ID, sid, claims.MFA, now)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:                sid,
		UserID:            user.ID,
		TokenDigest:       tokenDigest(access),
		ExpiresAt:         expiresAt,
		LastActiveAt:      now,
		IP:                e.clip(rc.IP),
		UserAgent:         e.clip(rc.UserAgent),
		DeviceFingerprint: rc.DeviceFingerprint,
		TwoFactorVerified: claims.MFA,
		CreatedAt:         now,
	}
	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, sid, rc.IP, nil, nil)

	return &RefreshResult{AccessToken: access, SessionID: sid, ExpiresAt: expiresAt}, nil
}

// Logout revokes the session behind an access token. It reports whether a
// live session was actually revoked; an unknown or already-revoked token
// logs out to false, never to an error, since the caller's goal state is
// already reached.
func (e *Engine) Logout(ctx context.Context, token string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	now := e.now()

	session, err := e.sessions.GetByDigest(ctx, tokenDigest(token))
	if err != nil {
		return false, err
	}
	if session == nil || session.Revoked {
		return false, nil
	}

	revoked, err := e.sessions.Revoke(ctx, session.ID, "logout", session.UserID, now)
	if err != nil {
		return false, err
	}
	if revoked {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventLogoutSession, true, session.UserID, session.ID, "", nil, nil)
	}
	return revoked, nil
}

// RevokeToken revokes the session behind a token with an explicit reason
// and revoker. Revocation is permanent; there is no un-revoke.
func (e *Engine) RevokeToken(ctx context.Context, token, reason, by string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	now := e.now()

	session, err := e.sessions.GetByDigest(ctx, tokenDigest(token))
	if err != nil {
		return false, err
	}
	if session == nil || session.Revoked {
		return false, nil
	}

	revoked, err := e.sessions.Revoke(ctx, session.ID, reason, by, now)
	if err != nil {
		return false, err
	}
	if revoked {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventLogoutSession, true, session.UserID, session.ID, "", nil, func() map[string]string {
			return map[string]string{"reason": reason, "revoked_by": by}
		})
	}
	return revoked, nil
}

// RevokeAllSessions revokes every live session of a user and returns the
// count. by attributes the revocation (an admin ID, or the user's own).
func (e *Engine) RevokeAllSessions(ctx context.Context, userID, reason, by string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.now()

	count, err := e.sessions.RevokeAllForUser(ctx, userID, reason, by, now)
	if err != nil {
		return 0, err
	}
	for i := 0; i < count; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{"reason": reason, "revoked_by": by}
	})
	return count, nil
}

func (e *Engine) rejectToken(ctx context.Context, userID, reason string) {
	e.metricInc(MetricTokenRejected)
	e.emitAudit(ctx, auditEventTokenRejected, false, userID, "", "", ErrTokenInvalid, func() map[string]string {
		return map[string]string{"reason": reason}
	})
}

func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}
