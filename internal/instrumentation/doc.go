// Package instrumentation provides OpenTelemetry metrics and audit logging
// for the calendar agent.
//
// A Provider owns the meter provider and exporter (Prometheus by default)
// and hands out a Metrics recorder with counters and histograms for HTTP
// requests, calendar backend operations, executed actions, delete
// verification, re-plan cycles and undo operations.
//
// Audit logging records every executed mutating action with enough context
// to answer "who changed what, when". PII controls keep the user email out
// of logs unless explicitly enabled.
package instrumentation
