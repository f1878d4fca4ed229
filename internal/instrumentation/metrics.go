package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrAction    = "action"
	attrOutcome   = "outcome"
	attrResult    = "result"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a no-op recorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Calendar backend metrics
	backendOperationsTotal   metric.Int64Counter
	backendOperationDuration metric.Float64Histogram

	// Agent metrics
	actionsTotal          metric.Int64Counter
	actionDuration        metric.Float64Histogram
	deleteVerifyTotal     metric.Int64Counter
	replanCyclesTotal     metric.Int64Counter
	undoTotal             metric.Int64Counter

	// detailedLabels controls whether high-cardinality labels are included.
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.backendOperationsTotal, err = meter.Int64Counter(
		"calendar_api_operations_total",
		metric.WithDescription("Total number of Google Calendar API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operations_total counter: %w", err)
	}

	m.backendOperationDuration, err = meter.Float64Histogram(
		"calendar_api_operation_duration_seconds",
		metric.WithDescription("Google Calendar API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_api_operation_duration_seconds histogram: %w", err)
	}

	m.actionsTotal, err = meter.Int64Counter(
		"agent_actions_total",
		metric.WithDescription("Total number of executed agent actions"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_actions_total counter: %w", err)
	}

	m.actionDuration, err = meter.Float64Histogram(
		"agent_action_duration_seconds",
		metric.WithDescription("Agent action execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_action_duration_seconds histogram: %w", err)
	}

	m.deleteVerifyTotal, err = meter.Int64Counter(
		"agent_delete_verify_total",
		metric.WithDescription("Total number of delete verification protocol runs, by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_delete_verify_total counter: %w", err)
	}

	m.replanCyclesTotal, err = meter.Int64Counter(
		"agent_replan_cycles_total",
		metric.WithDescription("Total number of re-plan cycles triggered by unconfirmed deletes"),
		metric.WithUnit("{cycle}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_replan_cycles_total counter: %w", err)
	}

	m.undoTotal, err = meter.Int64Counter(
		"agent_undo_total",
		metric.WithDescription("Total number of undo operations, by undone action and status"),
		metric.WithUnit("{undo}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_undo_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code
// and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}
	// Route patterns multiply the series count per method and status, so
	// they are only emitted when detailed labels are enabled.
	if m.detailedLabels {
		attrs = append(attrs, attribute.String(attrPath, path))
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBackendOperation records a Google Calendar API operation.
// Operation is one of list, get, create, update, delete; status is
// "success" or "error".
func (m *Metrics) RecordBackendOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.backendOperationsTotal == nil || m.backendOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.backendOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAction records one executed agent action with its status and
// duration.
func (m *Metrics) RecordAction(ctx context.Context, action, status string, duration time.Duration) {
	if m.actionsTotal == nil || m.actionDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrAction, action),
		attribute.String(attrStatus, status),
	}

	m.actionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.actionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordDeleteVerify records one run of the delete verification protocol.
// Outcome is one of: confirmed, not_found, unconfirmed, error.
func (m *Metrics) RecordDeleteVerify(ctx context.Context, outcome string, attempts int) {
	if m.deleteVerifyTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOutcome, outcome),
		attribute.Int("attempts", attempts),
	}

	m.deleteVerifyTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReplanCycle records a re-plan cycle with its result.
// Result is one of: recovered, unrecovered, plan_failed, context_failed.
func (m *Metrics) RecordReplanCycle(ctx context.Context, result string) {
	if m.replanCyclesTotal == nil {
		return // Instrumentation not initialized
	}

	m.replanCyclesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordUndo records an undo operation for the given action type.
func (m *Metrics) RecordUndo(ctx context.Context, actionType, status string) {
	if m.undoTotal == nil {
		return // Instrumentation not initialized
	}

	m.undoTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrAction, actionType),
		attribute.String(attrStatus, status),
	))
}
