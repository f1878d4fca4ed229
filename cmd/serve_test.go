package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandFlagDefaults(t *testing.T) {
	cmd := newServeCmd()

	tests := []struct {
		flag string
		want string
	}{
		{"addr", ":8000"},
		{"llm-url", "http://localhost:8080/v1"},
		{"history-size", "50"},
		{"session-ttl", "0s"},
		{"verify-grace", "2s"},
		{"verify-backoff", "5s"},
		{"delete-attempts", "2"},
		{"metrics-enabled", "true"},
		{"metrics-addr", ":9090"},
		{"log-level", "info"},
		{"log-format", "json"},
	}
	for _, tt := range tests {
		f := cmd.Flags().Lookup(tt.flag)
		require.NotNil(t, f, tt.flag)
		assert.Equal(t, tt.want, f.DefValue, tt.flag)
	}
}

func TestApplyEnvFallbacks(t *testing.T) {
	t.Setenv("CALAGENT_LLM_MODEL", "qwen2.5-32b")
	t.Setenv("CALAGENT_ADDR", ":9999")
	t.Setenv("METRICS_ENABLED", "false")

	opts := &serveOptions{
		addr:           ":8000",
		llmURL:         "http://localhost:8080/v1",
		metricsAddr:    ":9090",
		metricsEnabled: true,
	}
	opts.applyEnv()

	assert.Equal(t, "qwen2.5-32b", opts.llmModel)
	assert.Equal(t, ":9999", opts.addr)
	assert.False(t, opts.metricsEnabled)
}

func TestApplyEnvDoesNotOverrideExplicitFlags(t *testing.T) {
	t.Setenv("CALAGENT_ADDR", ":9999")

	opts := &serveOptions{addr: ":7777"}
	opts.applyEnv()

	assert.Equal(t, ":7777", opts.addr)
}

func TestServeRequiresModel(t *testing.T) {
	opts := &serveOptions{
		verifyGrace:    time.Second,
		verifyBackoff:  time.Second,
		deleteAttempts: 2,
	}

	err := runServe(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm-model")
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3")

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "calagent version 1.2.3\n", out.String())
}
