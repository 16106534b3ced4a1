package authcore

import (
	"time"

	internalaudit "github.com/gnanirahulnutakki/authcore/internal/audit"
	"github.com/gnanirahulnutakki/authcore/internal/secrets"
	"github.com/gnanirahulnutakki/authcore/jwt"
	"github.com/gnanirahulnutakki/authcore/password"
)

// Engine is the authentication orchestrator. Construct it through
// [Builder.Build]; a zero Engine returns [ErrEngineNotReady] from every
// method. All methods are safe for concurrent use.
type Engine struct {
	config Config

	users      UserStore
	sessions   SessionStore
	twoFactor  TwoFactorStore
	hasher     *password.Hasher
	backupHash *password.Hasher
	tokens     *jwt.Manager
	totp       *totpManager
	cipher     *secrets.Cipher
	limiter    *secondFactorLimiter
	audit      *internalaudit.Dispatcher
	metrics    *Metrics

	// maskHash is a digest of an unguessable value, verified against when
	// an identifier resolves to no user so the response time matches the
	// real path. Computed once per engine with its own hasher profile.
	maskHash string

	// now is the single clock of the engine; tests override it. Wall time
	// only — clock-skew handling across nodes is the deployment's problem
	// (see DESIGN.md).
	now func() time.Time
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	return nil
}

// clip bounds a request-context string before persistence.
func (e *Engine) clip(s string) string {
	max := e.config.Sessions.MaxBindingLength
	if len(s) <= max {
		return s
	}
	return s[:max]
}
