package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/planner"
)

// fakeBackend implements calendar.Service with overridable behavior and
// records every call in order.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	listFn   func(ctx context.Context, opts calendar.ListOptions) (*calendar.EventPage, error)
	getFn    func(ctx context.Context, eventID string) (*calendarapi.Event, error)
	createFn func(ctx context.Context, event *calendarapi.Event) (*calendarapi.Event, error)
	updateFn func(ctx context.Context, eventID string, event *calendarapi.Event) (*calendarapi.Event, error)
	deleteFn func(ctx context.Context, eventID string) error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeBackend) ListEvents(ctx context.Context, opts calendar.ListOptions) (*calendar.EventPage, error) {
	f.record("list")
	if f.listFn != nil {
		return f.listFn(ctx, opts)
	}
	return &calendar.EventPage{}, nil
}

func (f *fakeBackend) GetEvent(ctx context.Context, eventID string) (*calendarapi.Event, error) {
	f.record("get:" + eventID)
	if f.getFn != nil {
		return f.getFn(ctx, eventID)
	}
	return nil, notFoundErr()
}

func (f *fakeBackend) CreateEvent(ctx context.Context, event *calendarapi.Event) (*calendarapi.Event, error) {
	f.record("create")
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	created := *event
	created.Id = "generated-id"
	return &created, nil
}

func (f *fakeBackend) UpdateEvent(ctx context.Context, eventID string, event *calendarapi.Event) (*calendarapi.Event, error) {
	f.record("update:" + eventID)
	if f.updateFn != nil {
		return f.updateFn(ctx, eventID, event)
	}
	return event, nil
}

func (f *fakeBackend) DeleteEvent(ctx context.Context, eventID string) error {
	f.record("delete:" + eventID)
	if f.deleteFn != nil {
		return f.deleteFn(ctx, eventID)
	}
	return nil
}

// fakePlanner returns queued plans in order and records the requests it
// received.
type fakePlanner struct {
	mu       sync.Mutex
	plans    []*planner.Plan
	err      error
	requests []planner.Request
}

func (f *fakePlanner) Plan(_ context.Context, req planner.Request) (*planner.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.requests) - 1
	if i >= len(f.plans) {
		return &planner.Plan{Message: "nothing to do"}, nil
	}
	return f.plans[i], nil
}

func (f *fakePlanner) planCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func notFoundErr() error {
	return &calendar.Error{Kind: calendar.KindNotFound, Op: "calendar.events.get", Err: errors.New("not found")}
}

func newTestAgent(t *testing.T, p planner.Planner) (*Agent, *history.Store) {
	t.Helper()
	store := history.New()
	t.Cleanup(store.Close)

	a := New(p, store, Config{DeleteAttempts: 2},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a.sleep = func(context.Context, time.Duration) error { return nil }
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a, store
}

func TestChatCreateThenUndo(t *testing.T) {
	p := &fakePlanner{plans: []*planner.Plan{{
		Message: "Created your meeting.",
		Actions: []planner.Action{planner.CreateAction{
			Summary:       "Team sync",
			StartDateTime: "2025-06-02T10:00:00Z",
			EndDateTime:   "2025-06-02T10:30:00Z",
		}},
	}}}
	backend := &fakeBackend{}
	a, _ := newTestAgent(t, p)

	resp, err := a.Chat(context.Background(), backend, "session-a", ChatRequest{Prompt: "schedule a team sync"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
	assert.True(t, resp.Results[0].CanUndo)
	assert.Equal(t, "generated-id", resp.Results[0].EventID)
	assert.Equal(t, "Created your meeting.", resp.Message)

	records := a.History("session-a", 10)
	require.Len(t, records, 1)
	assert.Equal(t, history.TypeCreate, records[0].ActionType)

	undo := a.Undo(context.Background(), backend, "session-a")
	assert.True(t, undo.Success)
	assert.Equal(t, "create", undo.UndoneAction)
	assert.Equal(t, 1, backend.callCount("delete:generated-id"))

	again := a.Undo(context.Background(), backend, "session-a")
	assert.False(t, again.Success)
	assert.Equal(t, "No actions to undo.", again.Message)
}

func TestChatPlannerErrorAbortsBeforeExecution(t *testing.T) {
	p := &fakePlanner{err: &planner.ParseError{Detail: "not json"}}
	backend := &fakeBackend{}
	a, _ := newTestAgent(t, p)

	_, err := a.Chat(context.Background(), backend, "session-a", ChatRequest{Prompt: "do something"})
	require.Error(t, err)
	var parseErr *planner.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Zero(t, backend.callCount("create"))
	assert.Zero(t, backend.callCount("delete:"))
}

func TestExecuteFailureIsolation(t *testing.T) {
	p := &fakePlanner{}
	backend := &fakeBackend{
		createFn: func(context.Context, *calendarapi.Event) (*calendarapi.Event, error) {
			return nil, fmt.Errorf("backend hiccup")
		},
		getFn: func(_ context.Context, eventID string) (*calendarapi.Event, error) {
			return &calendarapi.Event{Id: eventID, Summary: "Standup"}, nil
		},
	}
	a, _ := newTestAgent(t, p)

	results := a.Execute(context.Background(), backend, "session-a", []planner.Action{
		planner.CreateAction{Summary: "x", StartDateTime: "2025-06-02T10:00:00Z", EndDateTime: "2025-06-02T11:00:00Z"},
		planner.GetAction{EventID: "ev-2"},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Error)
	assert.True(t, results[1].Success)
	assert.Equal(t, "ev-2", results[1].EventID)
}

func TestExecuteUpdateJournalsSnapshot(t *testing.T) {
	original := &calendarapi.Event{Id: "ev-1", Summary: "Old title", Location: "Room 1"}
	p := &fakePlanner{}
	backend := &fakeBackend{
		getFn: func(context.Context, string) (*calendarapi.Event, error) {
			return original, nil
		},
	}
	a, _ := newTestAgent(t, p)

	results := a.Execute(context.Background(), backend, "session-a", []planner.Action{
		planner.UpdateAction{EventID: "ev-1", Summary: "New title"},
	})

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.True(t, results[0].CanUndo)

	records := a.History("session-a", 1)
	require.Len(t, records, 1)
	assert.Equal(t, history.TypeUpdate, records[0].ActionType)
	require.NotNil(t, records[0].Rollback.OriginalEvent)
	assert.Equal(t, "Old title", records[0].Rollback.OriginalEvent.Summary)
	assert.Equal(t, "Room 1", records[0].Rollback.OriginalEvent.Location)
}

func TestApplyUpdateOverlaysOnlyProvidedFields(t *testing.T) {
	original := &calendarapi.Event{
		Id:       "ev-1",
		Summary:  "Old",
		Location: "Room 1",
		Start:    &calendarapi.EventDateTime{DateTime: "2025-06-02T10:00:00Z"},
	}

	updated := applyUpdate(original, planner.UpdateAction{EventID: "ev-1", Summary: "New"})

	assert.Equal(t, "New", updated.Summary)
	assert.Equal(t, "Room 1", updated.Location)
	assert.Equal(t, "2025-06-02T10:00:00Z", updated.Start.DateTime)
	assert.Equal(t, "Old", original.Summary)
}

func TestExecuteListIsNotJournaled(t *testing.T) {
	p := &fakePlanner{}
	backend := &fakeBackend{
		listFn: func(context.Context, calendar.ListOptions) (*calendar.EventPage, error) {
			return &calendar.EventPage{Events: []*calendarapi.Event{{Id: "ev-1", Summary: "Standup"}}}, nil
		},
	}
	a, _ := newTestAgent(t, p)

	results := a.Execute(context.Background(), backend, "session-a", []planner.Action{
		planner.ListAction{},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.False(t, results[0].CanUndo)
	assert.Empty(t, a.History("session-a", 10))
}
