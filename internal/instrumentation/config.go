package instrumentation

import (
	"os"
	"strconv"
)

// Exporter types for metrics.
const (
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Status values used as metric attributes and audit fields.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: calagent).
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Enabled determines if instrumentation is active (default: true).
	// Set INSTRUMENTATION_ENABLED=false to disable metrics entirely.
	Enabled bool

	// MetricsExporter specifies the metrics exporter type.
	// Options: "prometheus", "stdout", "none" (default: "prometheus").
	MetricsExporter string

	// PrometheusEndpoint is the path for the Prometheus metrics endpoint
	// (default: "/metrics").
	PrometheusEndpoint string

	// DetailedLabels controls whether high-cardinality labels are included.
	// Keep disabled in production to avoid cardinality explosion.
	DetailedLabels bool

	// AuditLogging configures audit logging behavior.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true).
	Enabled bool

	// IncludePII controls whether full email addresses appear in audit
	// logs. When false (default), only anonymized identifiers are logged.
	IncludePII bool
}

// DefaultConfig returns a Config with sensible defaults based on
// environment variables.
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "calagent"),
		ServiceVersion:     "unknown",
		Enabled:            getEnvBool("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBool("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBool("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBool("AUDIT_INCLUDE_PII", false),
		},
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
