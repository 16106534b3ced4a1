package authcore

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gnanirahulnutakki/authcore/password"
)

// Config is the complete configuration surface of the core. It is built
// once, validated by [Builder.Build], and treated as immutable afterwards.
// There are no package-level mutable defaults.
type Config struct {
	Tokens         TokenConfig
	Sessions       SessionConfig
	Password       PasswordConfig
	Policy         password.Policy
	Lockout        LockoutConfig
	TOTP           TOTPConfig
	BackupCodes    BackupCodeConfig
	TrustedDevices TrustedDeviceConfig
	SecondFactor   SecondFactorLimitConfig
	Audit          AuditConfig
	Metrics        MetricsConfig

	// EncryptionKey seals at-rest secrets (the TOTP seed). One key per
	// deployment.
	EncryptionKey string
}

// TokenConfig covers session token signing and lifetimes.
type TokenConfig struct {
	SigningSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// SessionConfig bounds the request context persisted on a session row.
type SessionConfig struct {
	// MaxBindingLength truncates IP and user-agent strings before they are
	// written to the session row.
	MaxBindingLength int
}

// PasswordConfig selects the Argon2id cost profile and history behavior.
type PasswordConfig struct {
	Memory       uint32 // KiB
	Time         uint32
	Parallelism  uint8
	SaltLength   uint32
	KeyLength    uint32
	HistoryDepth int
	// UpgradeOnLogin transparently rehashes a verified password when the
	// stored digest was produced with a weaker profile.
	UpgradeOnLogin bool
}

// LockoutConfig drives the failed-attempt policy.
type LockoutConfig struct {
	MaxAttempts int
	Duration    time.Duration
}

// TOTPConfig fixes the RFC 6238 parameters. Window is the tolerated clock
// drift in whole periods on each side of now — a deliberate, bounded
// relaxation.
type TOTPConfig struct {
	Issuer    string
	Algorithm string // SHA1 (default), SHA256, SHA512
	Digits    int
	Period    int
	Window    int
	// ReplayProtection rejects a code at or below the last accepted
	// counter even when it is inside the window.
	ReplayProtection bool
}

// BackupCodeConfig selects the recovery-code count and the reduced hashing
// profile applied to them.
type BackupCodeConfig struct {
	Count       int
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TrustedDeviceConfig bounds the per-user device allow-list.
type TrustedDeviceConfig struct {
	Duration   time.Duration
	MaxDevices int
}

// SecondFactorLimitConfig throttles TOTP/backup-code attempts per user.
// The throttle requires a Redis client on the Builder; without one it is
// inert.
type SecondFactorLimitConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the safe defaults: lockout
// 5/15m, TOTP SHA-1/6 digits/30s with a ±1 period window, 8 backup codes,
// 30-day device trust capped at 10 entries, 15m access and 7d refresh
// tokens. Signing secret and encryption key have no default and must be
// supplied.
func DefaultConfig() Config {
	return Config{
		Tokens: TokenConfig{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		Sessions: SessionConfig{
			MaxBindingLength: 255,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			HistoryDepth:   5,
			UpgradeOnLogin: true,
		},
		Policy: password.DefaultPolicy(),
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:           "authcore",
			Algorithm:        "SHA1",
			Digits:           6,
			Period:           30,
			Window:           1,
			ReplayProtection: true,
		},
		BackupCodes: BackupCodeConfig{
			Count:       8,
			Memory:      16 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		TrustedDevices: TrustedDeviceConfig{
			Duration:   30 * 24 * time.Hour,
			MaxDevices: 10,
		},
		SecondFactor: SecondFactorLimitConfig{
			MaxAttempts: 5,
			Cooldown:    time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) validate() error {
	if len(c.Tokens.SigningSecret) == 0 {
		return errors.New("config: signing secret is required")
	}
	if c.EncryptionKey == "" {
		return errors.New("config: encryption key is required")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("config: lockout max attempts must be positive")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("config: totp digits must be between 6 and 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("config: totp period must be positive")
	}
	if c.TOTP.Window < 0 || c.TOTP.Window > 2 {
		return errors.New("config: totp window must be between 0 and 2")
	}
	switch strings.ToUpper(c.TOTP.Algorithm) {
	case "", "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("config: unsupported totp algorithm %q", c.TOTP.Algorithm)
	}
	if c.BackupCodes.Count <= 0 {
		return errors.New("config: backup code count must be positive")
	}
	if c.TrustedDevices.MaxDevices <= 0 {
		return errors.New("config: trusted device cap must be positive")
	}
	if c.TrustedDevices.Duration <= 0 {
		return errors.New("config: trusted device duration must be positive")
	}
	if c.Sessions.MaxBindingLength <= 0 {
		return errors.New("config: session binding length must be positive")
	}
	if c.Policy.MinLength < 8 {
		return errors.New("config: password minimum length below 8")
	}
	return nil
}

func (c *Config) hasherParams() password.Params {
	return password.Params{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) backupHasherParams() password.Params {
	return password.Params{
		Memory:      c.BackupCodes.Memory,
		Time:        c.BackupCodes.Time,
		Parallelism: c.BackupCodes.Parallelism,
		SaltLength:  c.BackupCodes.SaltLength,
		KeyLength:   c.BackupCodes.KeyLength,
	}
}

// LoadEnv overlays environment variables onto the config. Unset variables
// leave the existing value untouched, so callers typically start from
// [DefaultConfig]. Durations use Go syntax ("15m", "720h").
//
//	AUTHCORE_SIGNING_SECRET      Tokens.SigningSecret
//	AUTHCORE_ENCRYPTION_KEY      EncryptionKey
//	AUTHCORE_TOKEN_ISSUER        Tokens.Issuer
//	AUTHCORE_ACCESS_TTL          Tokens.AccessTTL
//	AUTHCORE_REFRESH_TTL         Tokens.RefreshTTL
//	AUTHCORE_ARGON2_MEMORY_KB    Password.Memory
//	AUTHCORE_ARGON2_TIME         Password.Time
//	AUTHCORE_LOCKOUT_MAX         Lockout.MaxAttempts
//	AUTHCORE_LOCKOUT_DURATION    Lockout.Duration
//	AUTHCORE_TOTP_ISSUER         TOTP.Issuer
//	AUTHCORE_TOTP_WINDOW         TOTP.Window
//	AUTHCORE_BACKUP_CODE_COUNT   BackupCodes.Count
//	AUTHCORE_DEVICE_TRUST_TTL    TrustedDevices.Duration
func (c *Config) LoadEnv() error {
	if v := os.Getenv("AUTHCORE_SIGNING_SECRET"); v != "" {
		c.Tokens.SigningSecret = []byte(v)
	}
	if v := os.Getenv("AUTHCORE_ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
	if v := os.Getenv("AUTHCORE_TOKEN_ISSUER"); v != "" {
		c.Tokens.Issuer = v
	}
	if v := os.Getenv("AUTHCORE_TOTP_ISSUER"); v != "" {
		c.TOTP.Issuer = v
	}

	durs := []struct {
		key string
		dst *time.Duration
	}{
		{"AUTHCORE_ACCESS_TTL", &c.Tokens.AccessTTL},
		{"AUTHCORE_REFRESH_TTL", &c.Tokens.RefreshTTL},
		{"AUTHCORE_LOCKOUT_DURATION", &c.Lockout.Duration},
		{"AUTHCORE_DEVICE_TRUST_TTL", &c.TrustedDevices.Duration},
	}
	for _, d := range durs {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		set func(int)
	}{
		{"AUTHCORE_LOCKOUT_MAX", func(n int) { c.Lockout.MaxAttempts = n }},
		{"AUTHCORE_TOTP_WINDOW", func(n int) { c.TOTP.Window = n }},
		{"AUTHCORE_BACKUP_CODE_COUNT", func(n int) { c.BackupCodes.Count = n }},
		{"AUTHCORE_ARGON2_TIME", func(n int) { c.Password.Time = uint32(n) }},
		{"AUTHCORE_ARGON2_MEMORY_KB", func(n int) { c.Password.Memory = uint32(n) }},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return fmt.Errorf("config: %s: invalid integer %q", i.key, v)
		}
		i.set(parsed)
	}

	return nil
}
