package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calagent/internal/agent"
	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/planner"
)

type stubBackend struct {
	getFn    func(ctx context.Context, eventID string) (*calendarapi.Event, error)
	listFn   func(ctx context.Context, opts calendar.ListOptions) (*calendar.EventPage, error)
	createFn func(ctx context.Context, event *calendarapi.Event) (*calendarapi.Event, error)
	deleteFn func(ctx context.Context, eventID string) error
}

func (s *stubBackend) ListEvents(ctx context.Context, opts calendar.ListOptions) (*calendar.EventPage, error) {
	if s.listFn != nil {
		return s.listFn(ctx, opts)
	}
	return &calendar.EventPage{}, nil
}

func (s *stubBackend) GetEvent(ctx context.Context, eventID string) (*calendarapi.Event, error) {
	if s.getFn != nil {
		return s.getFn(ctx, eventID)
	}
	return &calendarapi.Event{Id: eventID, Summary: "Stub event"}, nil
}

func (s *stubBackend) CreateEvent(ctx context.Context, event *calendarapi.Event) (*calendarapi.Event, error) {
	if s.createFn != nil {
		return s.createFn(ctx, event)
	}
	created := *event
	created.Id = "created-id"
	return &created, nil
}

func (s *stubBackend) UpdateEvent(_ context.Context, _ string, event *calendarapi.Event) (*calendarapi.Event, error) {
	return event, nil
}

func (s *stubBackend) DeleteEvent(ctx context.Context, eventID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, eventID)
	}
	return nil
}

type stubPlanner struct {
	plan *planner.Plan
	err  error
}

func (s *stubPlanner) Plan(context.Context, planner.Request) (*planner.Plan, error) {
	return s.plan, s.err
}

func newTestServer(t *testing.T, p planner.Planner, backend calendar.Service) *Server {
	t.Helper()

	store := history.New()
	t.Cleanup(store.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ag := agent.New(p, store, agent.Config{}, agent.WithLogger(logger))

	return New("127.0.0.1:0", ag,
		WithLogger(logger),
		withBackendFactory(func(context.Context, string) (calendar.Service, error) {
			return backend, nil
		}))
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestMissingBearerRejected(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})

	for _, path := range []string{"/agent/chat", "/agent/undo"} {
		w := doRequest(t, s, http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := doRequest(t, s, http.MethodGet, "/calendar/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthEndpointsNeedNoAuth(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})

	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/readyz", "", nil).Code)
}

func TestReadyzAfterShutdownSignal(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})
	s.health.setReady(false)

	w := doRequest(t, s, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestChatExecutesPlan(t *testing.T) {
	p := &stubPlanner{plan: &planner.Plan{
		Message: "Created it.",
		Actions: []planner.Action{planner.CreateAction{
			Summary:       "Demo",
			StartDateTime: "2025-06-02T10:00:00Z",
			EndDateTime:   "2025-06-02T11:00:00Z",
		}},
	}}
	s := newTestServer(t, p, &stubBackend{})

	w := doRequest(t, s, http.MethodPost, "/agent/chat", "tok-1", map[string]any{"prompt": "make a demo event"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string `json:"message"`
		Results []struct {
			Action  string `json:"action"`
			Success bool   `json:"success"`
			CanUndo bool   `json:"can_undo"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Created it.", resp.Message)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
	assert.True(t, resp.Results[0].CanUndo)
}

func TestChatRequiresPrompt(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})

	w := doRequest(t, s, http.MethodPost, "/agent/chat", "tok-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatParseErrorMapsTo422(t *testing.T) {
	p := &stubPlanner{err: &planner.ParseError{Detail: "not json"}}
	s := newTestServer(t, p, &stubBackend{})

	w := doRequest(t, s, http.MethodPost, "/agent/chat", "tok-1", map[string]any{"prompt": "hello"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestChatTransportErrorMapsTo502(t *testing.T) {
	p := &stubPlanner{err: errors.New("connection refused")}
	s := newTestServer(t, p, &stubBackend{})

	w := doRequest(t, s, http.MethodPost, "/agent/chat", "tok-1", map[string]any{"prompt": "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetEventErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		kind calendar.Kind
		want int
	}{
		{"not found", calendar.KindNotFound, http.StatusNotFound},
		{"unauthenticated", calendar.KindUnauthenticated, http.StatusUnauthorized},
		{"forbidden", calendar.KindForbidden, http.StatusForbidden},
		{"other", calendar.KindOther, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{
				getFn: func(context.Context, string) (*calendarapi.Event, error) {
					return nil, &calendar.Error{Kind: tt.kind, Op: "calendar.events.get", Err: errors.New("boom")}
				},
			}
			s := newTestServer(t, &stubPlanner{}, backend)

			w := doRequest(t, s, http.MethodGet, "/calendar/events/ev-1", "tok-1", nil)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCreateEventValidation(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})

	w := doRequest(t, s, http.MethodPost, "/calendar/events", "tok-1", map[string]any{"summary": "no times"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodPost, "/calendar/events", "tok-1", map[string]any{
		"summary":        "Demo",
		"start_datetime": "2025-06-02T10:00:00Z",
		"end_datetime":   "2025-06-02T11:00:00Z",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created calendar.EventSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "created-id", created.ID)
}

func TestListEventsRejectsBadTimeRange(t *testing.T) {
	s := newTestServer(t, &stubPlanner{}, &stubBackend{})

	w := doRequest(t, s, http.MethodGet, "/calendar/events?time_min=yesterday", "tok-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackendOperationsAreMeasured(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = meterProvider.Shutdown(context.Background()) })

	metrics, err := instrumentation.NewMetrics(meterProvider.Meter("test"), false)
	require.NoError(t, err)

	store := history.New()
	t.Cleanup(store.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ag := agent.New(&stubPlanner{}, store, agent.Config{}, agent.WithLogger(logger))

	s := New("127.0.0.1:0", ag,
		WithLogger(logger),
		WithMetrics(metrics),
		withBackendFactory(func(context.Context, string) (calendar.Service, error) {
			return &stubBackend{}, nil
		}))

	w := doRequest(t, s, http.MethodGet, "/calendar/events/ev-1", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "calendar_api_operations_total" {
				found = true
			}
		}
	}
	assert.True(t, found, "backend operation counter should record the get")
}

func TestUndoAndHistoryFlow(t *testing.T) {
	p := &stubPlanner{plan: &planner.Plan{
		Message: "Created it.",
		Actions: []planner.Action{planner.CreateAction{
			Summary:       "Demo",
			StartDateTime: "2025-06-02T10:00:00Z",
			EndDateTime:   "2025-06-02T11:00:00Z",
		}},
	}}
	s := newTestServer(t, p, &stubBackend{})

	require.Equal(t, http.StatusOK,
		doRequest(t, s, http.MethodPost, "/agent/chat", "tok-1", map[string]any{"prompt": "make it"}).Code)

	w := doRequest(t, s, http.MethodGet, "/agent/history", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Count   int `json:"count"`
		History []struct {
			ActionType string `json:"action_type"`
			EventID    string `json:"event_id"`
			RolledBack bool   `json:"rolled_back"`
			Timestamp  string `json:"timestamp"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Equal(t, 1, hist.Count)
	assert.Equal(t, "create", hist.History[0].ActionType)
	assert.False(t, hist.History[0].RolledBack)
	_, err := time.Parse(time.RFC3339, hist.History[0].Timestamp)
	assert.NoError(t, err)

	w = doRequest(t, s, http.MethodPost, "/agent/undo", "tok-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var undo struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &undo))
	assert.True(t, undo.Success)

	// A different token is a different session and sees no history.
	w = doRequest(t, s, http.MethodGet, "/agent/history", "tok-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Equal(t, 0, hist.Count)
}
