package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gnanirahulnutakki/authcore"
	"github.com/gnanirahulnutakki/authcore/internal/dbx"
)

// UserStore implements authcore.UserStore. The lockout increment is a
// single UPDATE with the threshold check inlined, so concurrent failed
// logins cannot race past it.
type UserStore struct {
	db dbx.DBTX
}

func NewUserStore(db dbx.DBTX) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, username, email, display_name, role, active, email_verified,
       password_hash, password_history, must_change_password,
       failed_attempts, locked_until, last_login_at, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, user *authcore.User) error {
	history, err := json.Marshal(user.PasswordHistory)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	query := `INSERT INTO users (id, username, email, display_name, role, active, email_verified,
	              password_hash, password_history, must_change_password,
	              failed_attempts, locked_until, last_login_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayName, string(user.Role),
		user.Active, user.EmailVerified, user.PasswordHash, history,
		user.MustChangePassword, user.FailedAttempts, user.LockedUntil,
		user.LastLoginAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *UserStore) GetByIdentifier(ctx context.Context, identifier string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE LOWER(username) = LOWER($1) OR email = $1`
	return s.scanUser(s.db.QueryRowContext(ctx, query, identifier))
}

func (s *UserStore) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (int, *time.Time, error) {
	lockExpiry := now.Add(lockFor)

	query := `UPDATE users
	          SET failed_attempts = failed_attempts + 1,
	              locked_until = CASE
	                  WHEN failed_attempts + 1 >= $2
	                       AND (locked_until IS NULL OR locked_until <= $4)
	                  THEN $3
	                  ELSE locked_until
	              END,
	              updated_at = $4
	          WHERE id = $1
	          RETURNING failed_attempts, locked_until`

	var attempts int
	var lockedUntil sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id, maxAttempts, lockExpiry, now).
		Scan(&attempts, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, authcore.ErrUserNotFound
		}
		return 0, nil, fmt.Errorf("record login failure: %w", err)
	}

	if lockedUntil.Valid && lockedUntil.Time.After(now) {
		until := lockedUntil.Time
		return attempts, &until, nil
	}
	return attempts, nil, nil
}

func (s *UserStore) ResetLoginFailures(ctx context.Context, id string, lastLogin time.Time) error {
	query := `UPDATE users
	          SET failed_attempts = 0, locked_until = NULL,
	              last_login_at = $2, updated_at = $2
	          WHERE id = $1`
	return s.execForUser(ctx, query, id, lastLogin)
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, hash string, history []string, mustChange bool, now time.Time) error {
	encoded, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	query := `UPDATE users
	          SET password_hash = $2, password_history = $3,
	              must_change_password = $4, updated_at = $5
	          WHERE id = $1`
	return s.execForUser(ctx, query, id, hash, encoded, mustChange, now)
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id, hash string, now time.Time) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return s.execForUser(ctx, query, id, hash, now)
}

func (s *UserStore) execForUser(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) scanUser(row *sql.Row) (*authcore.User, error) {
	var (
		user        authcore.User
		role        string
		history     []byte
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName,
		&role, &user.Active, &user.EmailVerified, &user.PasswordHash,
		&history, &user.MustChangePassword, &user.FailedAttempts,
		&lockedUntil, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Role = authcore.Role(role)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &user.PasswordHistory); err != nil {
			return nil, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		user.LockedUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}
