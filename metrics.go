package authcore

import (
	"sync/atomic"
)

// MetricID identifies one counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricLoginSuccess counts fully authenticated logins (including the
	// trusted-device bypass path).
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed credential checks.
	MetricLoginFailure
	// MetricLoginLocked counts logins rejected by an active lockout.
	MetricLoginLocked
	// MetricSecondFactorRequired counts logins deferred to a second factor.
	MetricSecondFactorRequired
	// MetricSecondFactorSuccess counts successful second-factor checks.
	MetricSecondFactorSuccess
	// MetricSecondFactorFailure counts failed second-factor checks.
	MetricSecondFactorFailure
	// MetricSecondFactorRateLimited counts throttled second-factor attempts.
	MetricSecondFactorRateLimited
	// MetricTrustedDeviceBypass counts second-factor steps skipped for a
	// trusted device.
	MetricTrustedDeviceBypass
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBackupCodeRegenerated counts full backup-code replacements.
	MetricBackupCodeRegenerated
	// MetricSessionCreated counts issued sessions.
	MetricSessionCreated
	// MetricSessionRevoked counts revoked sessions (logout and revoke-all).
	MetricSessionRevoked
	// MetricTokenRejected counts access tokens rejected by Verify.
	MetricTokenRejected
	// MetricRefreshSuccess counts successful refresh operations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed refresh operations.
	MetricRefreshFailure
	// MetricPasswordChanged counts successful password changes and resets.
	MetricPasswordChanged
	// MetricPasswordRejected counts password changes rejected by policy,
	// reuse, or a wrong current password.
	MetricPasswordRejected
	// MetricTwoFactorEnabled counts confirmed two-factor enrollments.
	MetricTwoFactorEnabled
	// MetricTwoFactorDisabled counts two-factor disablements.
	MetricTwoFactorDisabled
	// MetricAccountCreated counts created users.
	MetricAccountCreated
	// MetricAccountCreationDuplicate counts creations rejected as duplicate.
	MetricAccountCreationDuplicate

	metricIDCount
)

type paddedCounter struct {
	value uint64
	_     [7]uint64 // avoid false sharing between adjacent counters
}

// Metrics holds lock-free counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
