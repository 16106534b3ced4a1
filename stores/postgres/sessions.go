package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gnanirahulnutakki/authcore"
	"github.com/gnanirahulnutakki/authcore/internal/dbx"
)

// SessionStore implements authcore.SessionStore.
type SessionStore struct {
	db dbx.DBTX
}

func NewSessionStore(db dbx.DBTX) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `id, user_id, token_digest, expires_at, last_active_at,
       ip, user_agent, device_fingerprint, two_factor_verified,
       remember_device, revoked, revoked_reason, revoked_by, revoked_at,
       created_at`

func (s *SessionStore) Create(ctx context.Context, session *authcore.Session) error {
	query := `INSERT INTO user_sessions (id, user_id, token_digest, expires_at, last_active_at,
	              ip, user_agent, device_fingerprint, two_factor_verified,
	              remember_device, revoked, revoked_reason, revoked_by, revoked_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.TokenDigest, session.ExpiresAt,
		session.LastActiveAt, session.IP, session.UserAgent,
		session.DeviceFingerprint, session.TwoFactorVerified,
		session.RememberDevice, session.Revoked, session.RevokedReason,
		session.RevokedBy, session.RevokedAt, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByDigest(ctx context.Context, digest string) (*authcore.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE token_digest = $1`
	return s.scanSession(s.db.QueryRowContext(ctx, query, digest))
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*authcore.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1`
	return s.scanSession(s.db.QueryRowContext(ctx, query, id))
}

func (s *SessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE user_sessions SET last_active_at = $2 WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *SessionStore) Revoke(ctx context.Context, id, reason, by string, at time.Time) (bool, error) {
	query := `UPDATE user_sessions
	          SET revoked = TRUE, revoked_reason = $2, revoked_by = $3, revoked_at = $4
	          WHERE id = $1 AND NOT revoked`

	res, err := s.db.ExecContext(ctx, query, id, reason, by, at)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID, reason, by string, at time.Time) (int, error) {
	query := `UPDATE user_sessions
	          SET revoked = TRUE, revoked_reason = $2, revoked_by = $3, revoked_at = $4
	          WHERE user_id = $1 AND NOT revoked`

	res, err := s.db.ExecContext(ctx, query, userID, reason, by, at)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SessionStore) scanSession(row *sql.Row) (*authcore.Session, error) {
	var (
		session   authcore.Session
		revokedAt sql.NullTime
	)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenDigest,
		&session.ExpiresAt, &session.LastActiveAt, &session.IP,
		&session.UserAgent, &session.DeviceFingerprint,
		&session.TwoFactorVerified, &session.RememberDevice,
		&session.Revoked, &session.RevokedReason, &session.RevokedBy,
		&revokedAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		session.RevokedAt = &t
	}
	return &session, nil
}
