package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/gnanirahulnutakki/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// counterDef binds an authcore metric to its exported instrument name.
type counterDef struct {
	id   authcore.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Failed login attempts."},
	{authcore.MetricLoginLocked, "authcore_login_locked_total", "Logins rejected by an active lockout."},
	{authcore.MetricSecondFactorRequired, "authcore_second_factor_required_total", "Logins deferred to a second factor."},
	{authcore.MetricSecondFactorSuccess, "authcore_second_factor_success_total", "Successful second-factor verifications."},
	{authcore.MetricSecondFactorFailure, "authcore_second_factor_failure_total", "Failed second-factor verifications."},
	{authcore.MetricSecondFactorRateLimited, "authcore_second_factor_rate_limited_total", "Throttled second-factor attempts."},
	{authcore.MetricTrustedDeviceBypass, "authcore_trusted_device_bypass_total", "Second-factor steps skipped for trusted devices."},
	{authcore.MetricBackupCodeUsed, "authcore_backup_code_used_total", "Consumed backup codes."},
	{authcore.MetricBackupCodeRegenerated, "authcore_backup_code_regenerated_total", "Backup-code set replacements."},
	{authcore.MetricSessionCreated, "authcore_session_created_total", "Sessions created."},
	{authcore.MetricSessionRevoked, "authcore_session_revoked_total", "Sessions revoked."},
	{authcore.MetricTokenRejected, "authcore_token_rejected_total", "Access tokens rejected on verification."},
	{authcore.MetricRefreshSuccess, "authcore_refresh_success_total", "Successful refresh operations."},
	{authcore.MetricRefreshFailure, "authcore_refresh_failure_total", "Failed refresh operations."},
	{authcore.MetricPasswordChanged, "authcore_password_changed_total", "Password changes and resets."},
	{authcore.MetricPasswordRejected, "authcore_password_rejected_total", "Password changes rejected by policy or proof."},
	{authcore.MetricTwoFactorEnabled, "authcore_two_factor_enabled_total", "Confirmed two-factor enrollments."},
	{authcore.MetricTwoFactorDisabled, "authcore_two_factor_disabled_total", "Two-factor disablements."},
	{authcore.MetricAccountCreated, "authcore_account_created_total", "Created accounts."},
	{authcore.MetricAccountCreationDuplicate, "authcore_account_creation_duplicate_total", "Account creations rejected as duplicate."},
}

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter bridges an engine's counters into an OTel Meter. Close
// unregisters the callback.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers observable counters for every engine metric on
// the given meter.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source, which is
// what tests use.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}
	observables := make([]metric.Observable, 0, len(counterDefs)+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.id, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
