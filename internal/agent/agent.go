package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
)

// Config holds the tunables of the execution pipeline. The verification
// delays encode an assumption about the backend's read-after-write
// latency and vary by deployment; they are flags, not constants.
type Config struct {
	// DeleteAttempts is the total attempt budget of the delete
	// verification protocol.
	DeleteAttempts int

	// VerifyGraceDelay is the wait between a delete call and the first
	// verification fetch, tolerating eventual consistency.
	VerifyGraceDelay time.Duration

	// VerifyBackoff is the longer wait before a retried delete.
	VerifyBackoff time.Duration

	// ContextWindowPast and ContextWindowFuture bound the event listing
	// supplied to the interpreter as context. The window reaches into the
	// past so that recently created events are included.
	ContextWindowPast   time.Duration
	ContextWindowFuture time.Duration

	// ContextMaxResults caps the context listing.
	ContextMaxResults int64
}

// DefaultConfig returns the default pipeline tunables.
func DefaultConfig() Config {
	return Config{
		DeleteAttempts:      2,
		VerifyGraceDelay:    2 * time.Second,
		VerifyBackoff:       5 * time.Second,
		ContextWindowPast:   7 * 24 * time.Hour,
		ContextWindowFuture: 60 * 24 * time.Hour,
		ContextMaxResults:   100,
	}
}

// Agent wires the interpreter, the history store and the pipeline
// tunables. The calendar backend is passed per call because it is bound
// to the caller's credential.
type Agent struct {
	planner planner.Planner
	history *history.Store
	config  Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	// sleep is replaced in tests to skip the verification delays.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(a *Agent) {
		if metrics != nil {
			a.metrics = metrics
		}
	}
}

// WithAuditLogger sets the audit logger for executed mutations.
func WithAuditLogger(audit *instrumentation.AuditLogger) Option {
	return func(a *Agent) {
		a.audit = audit
	}
}

// New creates an Agent. Zero config fields fall back to defaults, except
// the verification delays, which may legitimately be zero.
func New(p planner.Planner, store *history.Store, config Config, opts ...Option) *Agent {
	defaults := DefaultConfig()
	if config.DeleteAttempts <= 0 {
		config.DeleteAttempts = defaults.DeleteAttempts
	}
	if config.ContextWindowPast <= 0 {
		config.ContextWindowPast = defaults.ContextWindowPast
	}
	if config.ContextWindowFuture <= 0 {
		config.ContextWindowFuture = defaults.ContextWindowFuture
	}
	if config.ContextMaxResults <= 0 {
		config.ContextMaxResults = defaults.ContextMaxResults
	}

	a := &Agent{
		planner: p,
		history: store,
		config:  config,
		logger:  logging.WithService(slog.Default(), "agent"),
		metrics: &instrumentation.Metrics{},
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ChatRequest is one natural-language request against the calendar.
type ChatRequest struct {
	Prompt      string
	Timezone    string // IANA name; empty or unknown falls back to UTC
	UserEmail   string
	ChatContext string
}

// ChatResponse carries the interpreter's message and one result per
// executed action.
type ChatResponse struct {
	Message   string         `json:"message"`
	Reasoning string         `json:"reasoning,omitempty"`
	Results   []ActionResult `json:"results"`
}

// Chat interprets the prompt and executes the resulting plan. Interpreter
// failures abort the whole request before any action executes and are
// returned as an error; per-action failures are embedded in the results.
func (a *Agent) Chat(ctx context.Context, svc calendar.Service, sessionKey string, req ChatRequest) (*ChatResponse, error) {
	userDateTime, tzLabel := a.resolveUserDateTime(req.Timezone)

	planReq := planner.Request{
		Prompt:       req.Prompt,
		Events:       a.contextEvents(ctx, svc),
		UserEmail:    req.UserEmail,
		UserDateTime: userDateTime,
		UserTimezone: tzLabel,
		ChatContext:  req.ChatContext,
	}

	plan, err := a.planner.Plan(ctx, planReq)
	if err != nil {
		return nil, err
	}

	results := a.execute(ctx, svc, sessionKey, req.UserEmail, plan.Actions)
	results, message := a.retryFailedDeletes(ctx, svc, sessionKey, planReq, results, plan.Message)

	return &ChatResponse{
		Message:   message,
		Reasoning: plan.Reasoning,
		Results:   results,
	}, nil
}

// History returns up to limit most-recent journal entries for the session.
func (a *Agent) History(sessionKey string, limit int) []history.ActionRecord {
	return a.history.History(sessionKey, limit)
}

// resolveUserDateTime returns the user's current datetime and the
// resolved timezone label. Unknown timezone names fall back to UTC.
func (a *Agent) resolveUserDateTime(name string) (time.Time, string) {
	loc := time.UTC
	label := "UTC"
	if name != "" {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
			label = name
		}
	}
	return a.now().In(loc), label
}

// contextEvents fetches the events handed to the interpreter as context.
// Fetch failures are tolerated; the interpreter then plans without
// calendar context.
func (a *Agent) contextEvents(ctx context.Context, svc calendar.Service) []calendar.EventSummary {
	now := a.now().UTC()
	page, err := svc.ListEvents(ctx, calendar.ListOptions{
		TimeMin:    now.Add(-a.config.ContextWindowPast),
		TimeMax:    now.Add(a.config.ContextWindowFuture),
		MaxResults: a.config.ContextMaxResults,
	})
	if err != nil {
		a.logger.Warn("failed to fetch event context", logging.Err(err))
		return nil
	}
	return calendar.Summaries(page.Events)
}

// sleepContext waits for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
