package authcore

import (
	"context"
	"errors"
	"time"
)

// GenerateTwoFactorSetup starts TOTP enrollment for a user. It mints a
// fresh secret, seals it, generates the backup-code set, and stores the
// whole thing as a pending record — the factor stays off until
// ConfirmTwoFactor proves the authenticator was provisioned. Calling it
// again before confirmation replaces the pending secret and codes. The
// returned secret and backup codes are shown to the user exactly once;
// only hashes and ciphertext persist.
func (e *Engine) GenerateTwoFactorSetup(ctx context.Context, userID, email string) (*TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.cipher == nil {
		return nil, ErrSecondFactorUnavailable
	}
	now := e.now()

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}

	existing, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Enabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	seed, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	sealed, err := e.cipher.Seal(seed)
	if err != nil {
		return nil, err
	}
	display, records, err := generateBackupCodes(e.backupHash, e.config.BackupCodes.Count)
	if err != nil {
		return nil, err
	}

	record := &TwoFactorRecord{
		UserID:           userID,
		Enabled:          false,
		SecretCiphertext: sealed,
		Algorithm:        e.config.TOTP.Algorithm,
		Digits:           e.config.TOTP.Digits,
		Period:           e.config.TOTP.Period,
		BackupCodes:      records,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if existing != nil {
		// Re-running setup keeps previously trusted devices.
		record.TrustedDevices = existing.TrustedDevices
		record.CreatedAt = existing.CreatedAt
	}
	if err := e.twoFactor.Save(ctx, record); err != nil {
		return nil, err
	}

	uri := e.totp.ProvisionURI(secretBase32, email)
	qr, err := e.totp.QRImage(uri, 256)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorSetup, true, userID, "", "", nil, nil)

	return &TwoFactorSetup{
		Secret:          secretBase32,
		ProvisioningURI: uri,
		QRImage:         qr,
		BackupCodes:     display,
	}, nil
}

// ConfirmTwoFactor completes enrollment by proving possession of the
// provisioned authenticator. Only a live TOTP code is accepted here —
// backup codes cannot confirm. On success the factor becomes enforced on
// every subsequent login.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	now := e.now()

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil || len(record.SecretCiphertext) == 0 {
		return ErrTwoFactorNotConfigured
	}
	if record.Enabled {
		return ErrTwoFactorAlreadyEnabled
	}

	seed, err := e.cipher.Open(record.SecretCiphertext)
	if err != nil {
		return err
	}
	ok, counter, err := e.totp.VerifyCode(seed, code, now)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, "", "", ErrInvalidCode, nil)
		return ErrInvalidCode
	}

	record.Enabled = true
	record.EnabledAt = &now
	record.LastCounter = counter
	record.LastVerifiedAt = &now
	record.UpdatedAt = now
	if err := e.twoFactor.Save(ctx, record); err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, userID, "", "", nil, nil)
	return nil
}

// DisableTwoFactor turns the factor off after verifying a current TOTP
// code or an unused backup code. The stored secret, backup codes, and
// trusted devices are all discarded; a later re-enable starts from a
// fresh setup.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	now := e.now()

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil || !record.Enabled {
		return ErrTwoFactorNotConfigured
	}

	if _, err := e.checkSecondFactorCode(ctx, userID, record, code, now); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, userID, "", "", err, nil)
		}
		return err
	}

	record.Enabled = false
	record.DisabledAt = &now
	record.SecretCiphertext = nil
	record.BackupCodes = nil
	record.TrustedDevices = nil
	record.LastCounter = 0
	record.UpdatedAt = now
	if err := e.twoFactor.Save(ctx, record); err != nil {
		return err
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, "", "", nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the whole backup-code set after
// verifying a current TOTP code or one remaining backup code. Old codes
// are dead the moment this returns, including any not yet used.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Enabled {
		return nil, ErrTwoFactorNotConfigured
	}

	if _, err := e.checkSecondFactorCode(ctx, userID, record, code, now); err != nil {
		return nil, err
	}

	display, records, err := generateBackupCodes(e.backupHash, e.config.BackupCodes.Count)
	if err != nil {
		return nil, err
	}
	record.BackupCodes = records
	record.UpdatedAt = now
	if err := e.twoFactor.Save(ctx, record); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesRegenerated, true, userID, "", "", nil, nil)
	return display, nil
}

// TrustDevice remembers the calling device so subsequent logins skip the
// second factor until the trust window lapses. It requires an enabled
// factor and a non-empty fingerprint; trusting a device with the factor
// off would be meaningless.
func (e *Engine) TrustDevice(ctx context.Context, userID string, rc RequestContext) error {
	if err := e.ready(); err != nil {
		return err
	}
	if rc.DeviceFingerprint == "" {
		return ErrTwoFactorNotConfigured
	}
	now := e.now()

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return err
	}
	if record == nil || !record.Enabled {
		return ErrTwoFactorNotConfigured
	}

	if err := e.trustDeviceRecord(ctx, record, rc, now); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventTrustedDeviceAdded, true, userID, "", rc.IP, nil, nil)
	return nil
}

// IsDeviceTrusted reports whether a fingerprint is inside an unexpired
// trust window for the user. Missing record, disabled factor, and empty
// fingerprint all answer false without error.
func (e *Engine) IsDeviceTrusted(ctx context.Context, userID, fingerprint string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	if fingerprint == "" {
		return false, nil
	}

	record, err := e.twoFactor.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if record == nil || !record.Enabled {
		return false, nil
	}
	return deviceTrusted(record.TrustedDevices, fingerprint, e.now()), nil
}

// trustDeviceRecord appends the caller's device to the record's trust
// list under the configured cap and persists the new list.
func (e *Engine) trustDeviceRecord(ctx context.Context, record *TwoFactorRecord, rc RequestContext, now time.Time) error {
	device := TrustedDevice{
		Fingerprint:  rc.DeviceFingerprint,
		IP:           e.clip(rc.IP),
		UserAgent:    e.clip(rc.UserAgent),
		TrustedUntil: now.Add(e.config.TrustedDevices.Duration),
		CreatedAt:    now,
	}
	devices := appendTrustedDevice(record.TrustedDevices, device, e.config.TrustedDevices.MaxDevices, now)
	record.TrustedDevices = devices
	return e.twoFactor.ReplaceTrustedDevices(ctx, record.UserID, devices)
}
