package authcore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// maskVerify burns one hash verification against the engine's mask digest
// so unknown identifiers take as long as wrong passwords.
func (e *Engine) maskVerify(candidate string) {
	if e.maskHash != "" {
		_, _ = e.hasher.Verify(candidate, e.maskHash)
	}
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.ContainsRune(identifier, '@') {
		return strings.ToLower(identifier)
	}
	return identifier
}

// Login runs the credential check and lockout policy for one attempt.
//
// Each outcome has a distinct shape: an active lock returns *LockedError, a
// failed check returns *CredentialsError with the attempts left, an
// inactive account returns ErrAccountDisabled, and a success either issues
// a session immediately or — when a confirmed two-factor record exists and
// no trusted device matches — returns a LoginResult with
// SecondFactorRequired set and no session.
func (e *Engine) Login(ctx context.Context, identifier, passphrase string, rc RequestContext) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	user, err := e.users.GetByIdentifier(ctx, normalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.maskVerify(passphrase)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", rc.IP, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "unknown_identifier"}
			})
			return nil, &CredentialsError{Remaining: e.config.Lockout.MaxAttempts - 1}
		}
		return nil, err
	}

	// An active lock rejects the attempt before the password is even
	// looked at; a correct guess must not reveal itself during lockout.
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, "", rc.IP, ErrAccountLocked, nil)
		return nil, &LockedError{Until: *user.LockedUntil}
	}

	ok, err := e.hasher.Verify(passphrase, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		attempts, lockedUntil, ferr := e.users.RecordLoginFailure(
			ctx, user.ID, e.config.Lockout.MaxAttempts, e.config.Lockout.Duration, now)
		if ferr != nil {
			return nil, ferr
		}
		e.metricInc(MetricLoginFailure)
		if lockedUntil != nil {
			e.metricInc(MetricLoginLocked)
			e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, "", rc.IP, ErrAccountLocked, func() map[string]string {
				return map[string]string{"trigger": "threshold_reached"}
			})
			return nil, &LockedError{Until: *lockedUntil}
		}
		remaining := e.config.Lockout.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", rc.IP, ErrInvalidCredentials, nil)
		return nil, &CredentialsError{Remaining: remaining}
	}

	if !user.Active {
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", rc.IP, ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	if e.config.Password.UpgradeOnLogin {
		if needs, uerr := e.hasher.NeedsRehash(user.PasswordHash); uerr == nil && needs {
			if rehash, herr := e.hasher.Hash(passphrase); herr == nil {
				// best effort; a failed upgrade must not block the login
				_ = e.users.UpdatePasswordHash(ctx, user.ID, rehash, now)
			}
		}
	}

	if err := e.users.ResetLoginFailures(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	lastLogin := now
	user.LastLoginAt = &lastLogin

	if e.twoFactor != nil {
		record, terr := e.twoFactor.Get(ctx, user.ID)
		if terr != nil {
			return nil, terr
		}
		if record != nil && record.Enabled {
			if deviceTrusted(record.TrustedDevices, rc.DeviceFingerprint, now) {
				e.metricInc(MetricTrustedDeviceBypass)
				e.emitAudit(ctx, auditEventTrustedDeviceBypass, true, user.ID, "", rc.IP, nil, func() map[string]string {
					return map[string]string{"fingerprint": rc.DeviceFingerprint}
				})
				return e.issueSession(ctx, user, rc, true)
			}
			e.metricInc(MetricSecondFactorRequired)
			e.emitAudit(ctx, auditEventSecondFactorRequired, true, user.ID, "", rc.IP, nil, nil)
			return &LoginResult{SecondFactorRequired: true, UserID: user.ID}, nil
		}
	}

	return e.issueSession(ctx, user, rc, false)
}

// VerifySecondFactor completes a login that returned SecondFactorRequired.
// code may be a current TOTP code or an unused backup code; which one
// matched is not revealed to the caller. On success the issued session is
// tagged as two-factor verified, and — when the request asked for it — the
// device is remembered.
func (e *Engine) VerifySecondFactor(ctx context.Context, userID, code string, rc RequestContext) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.twoFactor == nil {
		return nil, ErrTwoFactorNotConfigured
	}
	now := e.now()

	if err := e.limiter.Check(ctx, userID); err != nil {
		if errors.Is(err, ErrSecondFactorRateLimited) {
			e.metricInc(MetricSecondFactorRateLimited)
			e.emitAudit(ctx, auditEventSecondFactorRateLimited, false, userID, "", rc.IP, err, nil)
		}
		return nil, err
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}

	record, err := e.twoFactor.Get(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Enabled {
		return nil, ErrTwoFactorNotConfigured
	}

	usedBackup, verr := e.checkSecondFactorCode(ctx, user.ID, record, code, now)
	if verr != nil {
		if errors.Is(verr, ErrInvalidCode) {
			e.metricInc(MetricSecondFactorFailure)
			e.emitAudit(ctx, auditEventSecondFactorFailure, false, user.ID, "", rc.IP, verr, nil)
			if lerr := e.limiter.RecordFailure(ctx, user.ID); errors.Is(lerr, ErrSecondFactorRateLimited) {
				e.metricInc(MetricSecondFactorRateLimited)
				return nil, lerr
			}
		}
		return nil, verr
	}

	_ = e.limiter.Reset(ctx, user.ID)
	e.metricInc(MetricSecondFactorSuccess)
	if usedBackup {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, "", rc.IP, nil, func() map[string]string {
			return map[string]string{"remaining": strconv.Itoa(record.UnusedBackupCodes())}
		})
	}
	e.emitAudit(ctx, auditEventSecondFactorSuccess, true, user.ID, "", rc.IP, nil, nil)

	if rc.RememberDevice && rc.DeviceFingerprint != "" {
		if derr := e.trustDeviceRecord(ctx, record, rc, now); derr == nil {
			e.emitAudit(ctx, auditEventTrustedDeviceAdded, true, user.ID, "", rc.IP, nil, nil)
		}
	}

	return e.issueSession(ctx, user, rc, true)
}

// checkSecondFactorCode tries TOTP first, then the backup codes. It
// reports whether a backup code was consumed. Every failure collapses to
// ErrInvalidCode.
func (e *Engine) checkSecondFactorCode(ctx context.Context, userID string, record *TwoFactorRecord, code string, now time.Time) (bool, error) {
	if len(record.SecretCiphertext) > 0 {
		seed, err := e.cipher.Open(record.SecretCiphertext)
		if err == nil {
			ok, counter, verr := e.totp.VerifyCode(seed, code, now)
			if verr == nil && ok {
				if e.config.TOTP.ReplayProtection && counter <= record.LastCounter && record.LastCounter > 0 {
					return false, ErrInvalidCode
				}
				if serr := e.twoFactor.SetLastCounter(ctx, userID, counter, now); serr != nil {
					return false, serr
				}
				// advance the caller's copy too, so a later Save of the
				// record cannot roll the watermark back
				record.LastCounter = counter
				stamp := now
				record.LastVerifiedAt = &stamp
				return false, nil
			}
		}
	}

	canonical := canonicalizeBackupCode(code)
	if id, ok := verifyBackupCode(e.backupHash, record.BackupCodes, canonical); ok {
		consumed, cerr := e.twoFactor.ConsumeBackupCode(ctx, userID, id, now)
		if cerr != nil {
			return false, cerr
		}
		if consumed {
			record.BackupCodes = markUsed(record.BackupCodes, id, now)
			return true, nil
		}
	}

	return false, ErrInvalidCode
}
