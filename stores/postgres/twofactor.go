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

// TwoFactorStore implements authcore.TwoFactorStore. Save replaces the
// record and its backup codes in one transaction; ConsumeBackupCode is a
// single conditional UPDATE, so each code burns exactly once.
type TwoFactorStore struct {
	db *sql.DB
}

func NewTwoFactorStore(db *sql.DB) *TwoFactorStore {
	return &TwoFactorStore{db: db}
}

func (s *TwoFactorStore) Get(ctx context.Context, userID string) (*authcore.TwoFactorRecord, error) {
	query := `SELECT user_id, enabled, secret_ciphertext, algorithm, digits, period,
	                 last_counter, enabled_at, disabled_at, last_verified_at,
	                 created_at, updated_at
	          FROM user_2fa WHERE user_id = $1`

	var (
		record     authcore.TwoFactorRecord
		ciphertext []byte
		enabledAt  sql.NullTime
		disabledAt sql.NullTime
		verifiedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&record.UserID,
		&record.Enabled, &ciphertext, &record.Algorithm, &record.Digits,
		&record.Period, &record.LastCounter, &enabledAt, &disabledAt,
		&verifiedAt, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan 2fa record: %w", err)
	}

	record.SecretCiphertext = ciphertext
	if enabledAt.Valid {
		t := enabledAt.Time
		record.EnabledAt = &t
	}
	if disabledAt.Valid {
		t := disabledAt.Time
		record.DisabledAt = &t
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		record.LastVerifiedAt = &t
	}

	if record.BackupCodes, err = s.loadBackupCodes(ctx, userID); err != nil {
		return nil, err
	}
	if record.TrustedDevices, err = s.loadTrustedDevices(ctx, userID); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *TwoFactorStore) Save(ctx context.Context, record *authcore.TwoFactorRecord) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `INSERT INTO user_2fa (user_id, enabled, secret_ciphertext, algorithm,
		              digits, period, last_counter, enabled_at, disabled_at,
		              last_verified_at, created_at, updated_at)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		          ON CONFLICT (user_id) DO UPDATE SET
		              enabled = EXCLUDED.enabled,
		              secret_ciphertext = EXCLUDED.secret_ciphertext,
		              algorithm = EXCLUDED.algorithm,
		              digits = EXCLUDED.digits,
		              period = EXCLUDED.period,
		              last_counter = EXCLUDED.last_counter,
		              enabled_at = EXCLUDED.enabled_at,
		              disabled_at = EXCLUDED.disabled_at,
		              last_verified_at = EXCLUDED.last_verified_at,
		              updated_at = EXCLUDED.updated_at`

		_, err := tx.ExecContext(ctx, query, record.UserID, record.Enabled,
			record.SecretCiphertext, record.Algorithm, record.Digits,
			record.Period, record.LastCounter, record.EnabledAt,
			record.DisabledAt, record.LastVerifiedAt, record.CreatedAt,
			record.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert 2fa record: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM user_backup_codes WHERE user_id = $1`, record.UserID); err != nil {
			return fmt.Errorf("clear backup codes: %w", err)
		}
		for _, code := range record.BackupCodes {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO user_backup_codes (id, user_id, hash, used, used_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				code.ID, record.UserID, code.Hash, code.Used, code.UsedAt)
			if err != nil {
				return fmt.Errorf("insert backup code: %w", err)
			}
		}

		return replaceDevices(ctx, tx, record.UserID, record.TrustedDevices)
	})
}

func (s *TwoFactorStore) ConsumeBackupCode(ctx context.Context, userID, codeID string, at time.Time) (bool, error) {
	query := `UPDATE user_backup_codes
	          SET used = TRUE, used_at = $3
	          WHERE id = $1 AND user_id = $2 AND NOT used`

	res, err := s.db.ExecContext(ctx, query, codeID, userID, at)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *TwoFactorStore) SetLastCounter(ctx context.Context, userID string, counter int64, verifiedAt time.Time) error {
	query := `UPDATE user_2fa
	          SET last_counter = $2, last_verified_at = $3, updated_at = $3
	          WHERE user_id = $1`
	if _, err := s.db.ExecContext(ctx, query, userID, counter, verifiedAt); err != nil {
		return fmt.Errorf("set last counter: %w", err)
	}
	return nil
}

func (s *TwoFactorStore) ReplaceTrustedDevices(ctx context.Context, userID string, devices []authcore.TrustedDevice) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return replaceDevices(ctx, tx, userID, devices)
	})
}

func replaceDevices(ctx context.Context, tx dbx.DBTX, userID string, devices []authcore.TrustedDevice) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_trusted_devices WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear trusted devices: %w", err)
	}
	for _, device := range devices {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_trusted_devices (user_id, fingerprint, ip, user_agent, trusted_until, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, device.Fingerprint, device.IP, device.UserAgent,
			device.TrustedUntil, device.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert trusted device: %w", err)
		}
	}
	return nil
}

func (s *TwoFactorStore) loadBackupCodes(ctx context.Context, userID string) ([]authcore.BackupCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, used, used_at FROM user_backup_codes WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load backup codes: %w", err)
	}
	defer rows.Close()

	var codes []authcore.BackupCode
	for rows.Next() {
		var (
			code   authcore.BackupCode
			usedAt sql.NullTime
		)
		if err := rows.Scan(&code.ID, &code.Hash, &code.Used, &usedAt); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		if usedAt.Valid {
			t := usedAt.Time
			code.UsedAt = &t
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *TwoFactorStore) loadTrustedDevices(ctx context.Context, userID string) ([]authcore.TrustedDevice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, ip, user_agent, trusted_until, created_at
		 FROM user_trusted_devices WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("load trusted devices: %w", err)
	}
	defer rows.Close()

	var devices []authcore.TrustedDevice
	for rows.Next() {
		var device authcore.TrustedDevice
		if err := rows.Scan(&device.Fingerprint, &device.IP, &device.UserAgent,
			&device.TrustedUntil, &device.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trusted device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}
