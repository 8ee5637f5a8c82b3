package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/inboxfleet/internal/logging"
)

// Invocation captures one command run for audit logging.
//
// Account holds a full email address. LogAttrs only emits its hash; use
// LogAuditAttrs where the address itself must be kept.
type Invocation struct {
	Command string
	Account string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
}

// NewInvocation creates a new Invocation with timing started.
// Call Complete() when the command finishes.
func NewInvocation(command string) *Invocation {
	return &Invocation{
		Command:   command,
		StartTime: time.Now(),
	}
}

// WithAccount sets the account the command acts on.
func (inv *Invocation) WithAccount(email string) *Invocation {
	inv.Account = email
	return inv
}

// WithSpanContext extracts the trace id from the current span.
func (inv *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	inv.TraceID = GetTraceID(ctx)
	return inv
}

// Complete marks the invocation as finished. A nil err means success.
func (inv *Invocation) Complete(err error) *Invocation {
	inv.Duration = time.Since(inv.StartTime)
	inv.Success = err == nil
	if err != nil {
		inv.Error = err.Error()
	}
	return inv
}

// Status returns "success" or "error" based on the Success field.
func (inv *Invocation) Status() string {
	if inv.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes without PII.
func (inv *Invocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("command", inv.Command),
		logging.Duration(inv.Duration),
		slog.Bool("success", inv.Success),
	}
	if inv.Account != "" {
		attrs = append(attrs, logging.UserHash(inv.Account))
	}
	return inv.appendCommon(attrs)
}

// LogAuditAttrs returns slog attributes including the full account address.
func (inv *Invocation) LogAuditAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("command", inv.Command),
		logging.Duration(inv.Duration),
		slog.Bool("success", inv.Success),
	}
	if inv.Account != "" {
		attrs = append(attrs, logging.Account(inv.Account))
	}
	return inv.appendCommon(attrs)
}

func (inv *Invocation) appendCommon(attrs []slog.Attr) []slog.Attr {
	if inv.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", inv.TraceID))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String("error", inv.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per command run.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that hashes accounts.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logging.WithService(logger, "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log records inv. Successful runs are logged at debug level so they stay
// out of normal command output; failures at warn.
func (al *AuditLogger) Log(ctx context.Context, inv *Invocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := inv.LogAttrs()
	if al.includePII {
		attrs = inv.LogAuditAttrs()
	}

	if inv.Success {
		al.logger.LogAttrs(ctx, slog.LevelDebug, "command_executed", attrs...)
	} else {
		al.logger.LogAttrs(ctx, slog.LevelWarn, "command_failed", attrs...)
	}
}
