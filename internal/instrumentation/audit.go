package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ActionInvocation captures one executed calendar mutation for audit
// logging. It answers "who changed which event, when, and did it work".
//
// The UserEmail field contains PII; whether it is logged in full is
// controlled by AuditLoggingConfig.IncludePII.
type ActionInvocation struct {
	// Action kind (create, update, delete) or "undo".
	Action string

	// User identity and journal partition.
	UserEmail  string
	SessionKey string

	// Target event.
	EventID string

	// Execution details.
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// NewActionInvocation starts an invocation record for the given action.
func NewActionInvocation(action string) *ActionInvocation {
	return &ActionInvocation{
		Action:    action,
		StartTime: time.Now(),
	}
}

// WithUser attaches the user identity and session partition.
func (ai *ActionInvocation) WithUser(email, sessionKey string) *ActionInvocation {
	ai.UserEmail = email
	ai.SessionKey = sessionKey
	return ai
}

// WithEvent attaches the target event id.
func (ai *ActionInvocation) WithEvent(eventID string) *ActionInvocation {
	ai.EventID = eventID
	return ai
}

// Complete finalizes the invocation with its result.
func (ai *ActionInvocation) Complete(success bool, errMsg string) *ActionInvocation {
	ai.Duration = time.Since(ai.StartTime)
	ai.Success = success
	ai.Error = errMsg
	return ai
}

// Status returns "success" or "error" based on the Success field.
func (ai *ActionInvocation) Status() string {
	if ai.Success {
		return StatusSuccess
	}
	return StatusError
}

// UserDomain returns the domain portion of the user's email for
// lower-cardinality logging.
func (ai *ActionInvocation) UserDomain() string {
	return ExtractUserDomain(ai.UserEmail)
}

// AuditLogger writes structured audit entries for executed actions.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger creates an audit logger. Returns nil when audit logging
// is disabled, which callers treat as a no-op.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if !config.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger.With(slog.String("log_type", "audit")),
		config: config,
	}
}

// LogAction writes one audit entry. Safe to call on a nil receiver.
func (a *AuditLogger) LogAction(ctx context.Context, inv *ActionInvocation) {
	if a == nil || inv == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("action", inv.Action),
		slog.String("status", inv.Status()),
		slog.Duration("duration", inv.Duration),
	}
	if inv.EventID != "" {
		attrs = append(attrs, slog.String("event_id", inv.EventID))
	}
	if inv.SessionKey != "" {
		attrs = append(attrs, slog.String("session", inv.SessionKey))
	}
	if a.config.IncludePII && inv.UserEmail != "" {
		attrs = append(attrs, slog.String("user", inv.UserEmail))
	} else if inv.UserEmail != "" {
		attrs = append(attrs, slog.String("user_domain", inv.UserDomain()))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String("error", inv.Error))
	}

	a.logger.LogAttrs(ctx, slog.LevelInfo, "calendar action executed", attrs...)
}
