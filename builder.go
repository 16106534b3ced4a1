package authcore

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	internalaudit "github.com/gnanirahulnutakki/authcore/internal/audit"
	"github.com/gnanirahulnutakki/authcore/internal/secrets"
	"github.com/gnanirahulnutakki/authcore/jwt"
	"github.com/gnanirahulnutakki/authcore/password"
)

// Builder assembles an [Engine]. Construction is allocation-only until
// Build, which validates the configuration and wires every component. A
// Builder is single-use.
type Builder struct {
	config Config

	users     UserStore
	sessions  SessionStore
	twoFactor TwoFactorStore
	redis     *redis.Client
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithUserStore injects the identity store (required).
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

// WithSessionStore injects the session store (required).
func (b *Builder) WithSessionStore(s SessionStore) *Builder {
	b.sessions = s
	return b
}

// WithTwoFactorStore injects the two-factor store. Without one, every
// two-factor operation returns [ErrTwoFactorNotConfigured] and logins never
// branch to a second factor.
func (b *Builder) WithTwoFactorStore(s TwoFactorStore) *Builder {
	b.twoFactor = s
	return b
}

// WithRedis enables the second-factor attempt throttle.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the engine clock, for tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration, constructs every component, and
// returns the ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}
	if b.sessions == nil {
		return nil, errors.New("session store is required")
	}
	if err := b.config.validate(); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(b.config.hasherParams())
	if err != nil {
		return nil, err
	}
	backupHasher, err := password.NewHasher(b.config.backupHasherParams())
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	tokens, err := jwt.NewManager(jwt.Config{
		Secret:     b.config.Tokens.SigningSecret,
		Issuer:     b.config.Tokens.Issuer,
		AccessTTL:  b.config.Tokens.AccessTTL,
		RefreshTTL: b.config.Tokens.RefreshTTL,
		Leeway:     b.config.Tokens.Leeway,
		TimeFunc:   clock,
	})
	if err != nil {
		return nil, err
	}

	cipher, err := secrets.New(b.config.EncryptionKey)
	if err != nil {
		return nil, err
	}

	// mask digest for the unknown-identifier path, hashed with this
	// engine's own cost profile
	maskHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     b.config,
		users:      b.users,
		sessions:   b.sessions,
		twoFactor:  b.twoFactor,
		hasher:     hasher,
		backupHash: backupHasher,
		tokens:     tokens,
		totp:       newTOTPManager(b.config.TOTP),
		cipher:     cipher,
		limiter:    newSecondFactorLimiter(b.redis, b.config.SecondFactor),
		metrics:    NewMetrics(b.config.Metrics),
		maskHash:   maskHash,
		now:        clock,
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return engine, nil
}
