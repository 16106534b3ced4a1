package authcore

import (
	"context"
	"time"
)

// Role is the coarse identity role attached to a user. Expansion of a role
// into permissions happens outside this core.
type Role string

const (
	// RoleAdmin may run administrative flows (password reset on behalf of
	// another user, session revocation with attribution).
	RoleAdmin Role = "admin"
	// RoleOperator is the default working role.
	RoleOperator Role = "operator"
	// RoleViewer is a read-only role.
	RoleViewer Role = "viewer"
)

// ValidRole reports whether r is one of the fixed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// User is the identity record. Password history is a bounded list of prior
// hashes, newest first. FailedAttempts and LockedUntil implement the
// lockout policy; both mutate only through atomic store operations.
type User struct {
	ID                 string
	Username           string
	Email              string // stored lowercase
	DisplayName        string
	Role               Role
	Active             bool
	EmailVerified      bool
	PasswordHash       string
	PasswordHistory    []string
	MustChangePassword bool
	FailedAttempts     int
	LockedUntil        *time.Time
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Session represents one issued access token. TokenDigest is the hex
// SHA-256 of the raw token; the raw token is never persisted. A revoked or
// expired session is never valid regardless of whether its row still
// exists.
type Session struct {
	ID                string
	UserID            string
	TokenDigest       string
	ExpiresAt         time.Time
	LastActiveAt      time.Time
	IP                string
	UserAgent         string
	DeviceFingerprint string
	TwoFactorVerified bool
	RememberDevice    bool
	Revoked           bool
	RevokedReason     string
	RevokedBy         string
	RevokedAt         *time.Time
	CreatedAt         time.Time
}

// TwoFactorRecord is the one-per-user TOTP state. A record exists in
// pending state (secret sealed, Enabled false) between setup and
// confirmation; only a confirmed record gates login.
type TwoFactorRecord struct {
	UserID           string
	Enabled          bool
	SecretCiphertext []byte
	Algorithm        string
	Digits           int
	Period           int
	BackupCodes      []BackupCode
	TrustedDevices   []TrustedDevice
	LastCounter      int64 // highest accepted TOTP counter, for replay rejection
	EnabledAt        *time.Time
	DisabledAt       *time.Time
	LastVerifiedAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UnusedBackupCodes counts the codes still available.
func (r *TwoFactorRecord) UnusedBackupCodes() int {
	n := 0
	for _, c := range r.BackupCodes {
		if !c.Used {
			n++
		}
	}
	return n
}

// BackupCode stores the Argon2id digest of a single recovery code plus its
// consumption marker. The plaintext is never persisted.
type BackupCode struct {
	ID     string
	Hash   string
	Used   bool
	UsedAt *time.Time
}

// TrustedDevice is one entry in a user's bounded device allow-list.
type TrustedDevice struct {
	Fingerprint  string
	IP           string
	UserAgent    string
	TrustedUntil time.Time
	CreatedAt    time.Time
}

// RequestContext carries the caller-side binding data for a login or
// verification: client IP, user agent, and an opaque device fingerprint.
// All fields are optional; IP and UserAgent are truncated to the configured
// bound before persisting.
type RequestContext struct {
	IP                string
	UserAgent         string
	DeviceFingerprint string
	RememberDevice    bool
}

// LoginResult is returned by [Engine.Login] and [Engine.VerifySecondFactor].
// When SecondFactorRequired is true no session exists yet and only UserID
// is populated; the caller must follow up with VerifySecondFactor.
type LoginResult struct {
	SecondFactorRequired bool
	UserID               string

	User         *User
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RefreshResult is returned by [Engine.Refresh]. The refresh token itself
// is unchanged; only a new access token (and session row) is minted.
type RefreshResult struct {
	AccessToken string
	SessionID   string
	ExpiresAt   time.Time
}

// TwoFactorSetup is returned by [Engine.GenerateTwoFactorSetup]. Secret and
// BackupCodes are shown to the user exactly once; only sealed or hashed
// forms persist.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	QRImage         []byte // PNG
	BackupCodes     []string
}

// CreateUserInput is the input for [Engine.CreateUser]. Role defaults to
// [RoleViewer] when empty.
type CreateUserInput struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
	Role        Role
}

// UserStore is the identity persistence boundary. Implementations must make
// RecordLoginFailure a single atomic increment-and-check — a read-modify-
// write across two round trips lets concurrent failed logins race past the
// lockout threshold.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByIdentifier resolves a username or email (already lowercased by
	// the caller for email). Returns ErrUserNotFound when absent.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	// RecordLoginFailure atomically increments the failure counter and,
	// when it reaches maxAttempts, sets locked_until = now + lockFor. It
	// returns the post-increment counter and the lock expiry if one was
	// set by this call or is already active.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (attempts int, lockedUntil *time.Time, err error)
	// ResetLoginFailures zeroes the counter, clears the lock, and stamps
	// the last successful login.
	ResetLoginFailures(ctx context.Context, id string, lastLogin time.Time) error
	// UpdatePassword replaces the hash and history and sets the
	// force-change flag.
	UpdatePassword(ctx context.Context, id string, hash string, history []string, mustChange bool, now time.Time) error
	// UpdatePasswordHash swaps only the hash, used for transparent cost
	// upgrades after a successful verification.
	UpdatePasswordHash(ctx context.Context, id string, hash string, now time.Time) error
}

// SessionStore persists session rows. Token lookup happens only by digest;
// GetByID exists solely so Refresh can confirm the originating session was
// not revoked.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	// GetByDigest returns (nil, nil) when no row matches.
	GetByDigest(ctx context.Context, digest string) (*Session, error)
	// GetByID returns (nil, nil) when no row matches.
	GetByID(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// Revoke marks one session revoked and reports whether a live row was
	// actually flipped. Revocation is permanent.
	Revoke(ctx context.Context, id, reason, by string, at time.Time) (bool, error)
	// RevokeAllForUser revokes every unrevoked session of a user and
	// returns the count.
	RevokeAllForUser(ctx context.Context, userID, reason, by string, at time.Time) (int, error)
}

// TwoFactorStore persists per-user two-factor state. Get returns (nil, nil)
// when no record exists.
type TwoFactorStore interface {
	Get(ctx context.Context, userID string) (*TwoFactorRecord, error)
	// Save upserts the full record (used for setup, confirm, disable, and
	// backup-code replacement).
	Save(ctx context.Context, record *TwoFactorRecord) error
	// ConsumeBackupCode atomically marks one code used and reports whether
	// it was still unused. A second consume of the same code returns false.
	ConsumeBackupCode(ctx context.Context, userID, codeID string, at time.Time) (bool, error)
	// SetLastCounter persists the replay watermark and the verification
	// timestamp.
	SetLastCounter(ctx context.Context, userID string, counter int64, verifiedAt time.Time) error
	// ReplaceTrustedDevices swaps the device list wholesale; implementations
	// must reject lists longer than the configured cap.
	ReplaceTrustedDevices(ctx context.Context, userID string, devices []TrustedDevice) error
}
