package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Operator      string
	DeviceID      string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security and data-mutation events to a structured log
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginAttempt logs one login attempt and its outcome
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Operator != "" {
		attrs = append(attrs, slog.String("operator", event.Operator))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device", TruncateDevice(event.DeviceID)))
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
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogLockout logs a device entering the locked state
func (al *AuditLogger) LogLockout(deviceID string, attempts int, blockedUntil time.Time) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "lockout"),
		slog.String("device", TruncateDevice(deviceID)),
		slog.Int("attempts", attempts),
		slog.String("blocked_until", blockedUntil.UTC().Format(time.RFC3339)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogBulkMutation logs a bulk change to client records
func (al *AuditLogger) LogBulkMutation(ctx context.Context, action, operator string, requested int, affected int64) {
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("audit_type", "clients"),
		slog.String("event_type", action),
		slog.String("operator", operator),
		slog.Int("requested", requested),
		slog.Int64("affected", affected),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
