package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditLoggerAnonymizesByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	audit := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true})
	require.NotNil(t, audit)

	inv := NewActionInvocation("delete").
		WithUser("jane@example.com", "abc123").
		WithEvent("evt1").
		Complete(true, "")
	audit.LogAction(context.Background(), inv)

	entry := auditEntry(t, &buf)
	assert.Equal(t, "calendar action executed", entry["msg"])
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "delete", entry["action"])
	assert.Equal(t, "success", entry["status"])
	assert.Equal(t, "evt1", entry["event_id"])
	assert.Equal(t, "example.com", entry["user_domain"])
	assert.NotContains(t, buf.String(), "jane@example.com")
}

func TestAuditLoggerWithPII(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	audit := NewAuditLogger(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})
	inv := NewActionInvocation("update").
		WithUser("jane@example.com", "abc123").
		Complete(false, "backend exploded")
	audit.LogAction(context.Background(), inv)

	entry := auditEntry(t, &buf)
	assert.Equal(t, "jane@example.com", entry["user"])
	assert.Equal(t, "error", entry["status"])
	assert.Equal(t, "backend exploded", entry["error"])
}

func TestAuditLoggerDisabled(t *testing.T) {
	audit := NewAuditLogger(slog.Default(), AuditLoggingConfig{Enabled: false})
	assert.Nil(t, audit)

	// Nil receiver is a safe no-op.
	audit.LogAction(context.Background(), NewActionInvocation("create"))
}

func TestExtractUserDomain(t *testing.T) {
	assert.Equal(t, "example.com", ExtractUserDomain("jane@example.com"))
	assert.Equal(t, "unknown", ExtractUserDomain("not-an-email"))
	assert.Equal(t, "unknown", ExtractUserDomain(""))
	assert.Equal(t, "unknown", ExtractUserDomain("trailing@"))
}
