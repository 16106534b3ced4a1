package authcore

import (
	"context"
	"errors"
	"io"
	"log/slog"

	internalaudit "github.com/gnanirahulnutakki/authcore/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] backed by a structured logger.
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink] over logger (slog.Default when nil).
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginLocked             = "login_locked"
	auditEventSecondFactorRequired    = "second_factor_required"
	auditEventSecondFactorSuccess     = "second_factor_success"
	auditEventSecondFactorFailure     = "second_factor_failure"
	auditEventSecondFactorRateLimited = "second_factor_rate_limited"
	auditEventTrustedDeviceBypass     = "trusted_device_bypass"
	auditEventTrustedDeviceAdded      = "trusted_device_added"
	auditEventSessionCreated          = "session_created"
	auditEventTokenRejected           = "token_rejected"
	auditEventRefreshSuccess          = "refresh_success"
	auditEventRefreshFailure          = "refresh_failure"
	auditEventLogoutSession           = "logout_session"
	auditEventLogoutAll               = "logout_all"
	auditEventPasswordChanged         = "password_changed"
	auditEventPasswordChangeRejected  = "password_change_rejected"
	auditEventPasswordReset           = "password_reset"
	auditEventAccountCreated          = "account_created"
	auditEventAccountCreateRejected   = "account_create_rejected"
	auditEventTwoFactorSetup          = "two_factor_setup_requested"
	auditEventTwoFactorEnabled        = "two_factor_enabled"
	auditEventTwoFactorDisabled       = "two_factor_disabled"
	auditEventBackupCodesRegenerated  = "backup_codes_regenerated"
	auditEventBackupCodeUsed          = "backup_code_used"
)

// auditErrorCode maps internal errors to the stable short codes recorded in
// audit events. The detailed reason lives only here; the caller-facing
// error stays generic.
func auditErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserExists):
		return "duplicate"
	case errors.Is(err, ErrPolicyViolation):
		return "password_policy"
	case errors.Is(err, ErrPasswordReuse):
		return "password_reuse"
	case errors.Is(err, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, ErrSecondFactorRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTwoFactorNotConfigured):
		return "two_factor_not_configured"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid_token"
	default:
		return "internal_error"
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	ip string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = code
	}

	e.audit.Emit(ctx, event)
}
