package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types emitted by the account lifecycle.
const (
	EventRegistered       = "account_registered"
	EventActivated        = "account_activated"
	EventActivationFailed = "activation_failed"
	EventActivationResent = "activation_resent"
	EventLoginSuccess     = "login_success"
	EventLoginFailed      = "login_failed"
	EventLogout           = "logout"
	EventResetRequested   = "password_reset_requested"
	EventResetConsumed    = "password_reset_consumed"
	EventResetRejected    = "password_reset_rejected"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AccountID     string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events as structured "audit" records.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs login and logout outcomes.
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	al.log(ctx, "auth", event)
}

// LogAccountAction logs registration and activation events.
func (al *AuditLogger) LogAccountAction(ctx context.Context, event AuditEvent) {
	al.log(ctx, "account", event)
}

// LogPasswordChange logs password recovery events.
func (al *AuditLogger) LogPasswordChange(ctx context.Context, event AuditEvent) {
	al.log(ctx, "password", event)
}

func (al *AuditLogger) log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", event.AccountID))
	}
	if event.IPAddress == "" {
		event.IPAddress = ClientIP(ctx)
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
