package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
)

// Execute runs the actions strictly in order and returns one result per
// action, in the same order, even when individual actions fail. Later
// actions may depend on the observable effects of earlier ones, so the
// batch is never parallelized.
func (a *Agent) Execute(ctx context.Context, svc calendar.Service, sessionKey string, actions []planner.Action) []ActionResult {
	return a.execute(ctx, svc, sessionKey, "", actions)
}

func (a *Agent) execute(ctx context.Context, svc calendar.Service, sessionKey, userEmail string, actions []planner.Action) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, a.executeAction(ctx, svc, sessionKey, userEmail, action))
	}
	return results
}

// executeAction dispatches one action over the closed kind set and
// records metrics, audit and logs for it. Failures are captured in the
// result; this function never returns an error.
func (a *Agent) executeAction(ctx context.Context, svc calendar.Service, sessionKey, userEmail string, action planner.Action) ActionResult {
	start := time.Now()

	var result ActionResult
	switch act := action.(type) {
	case planner.CreateAction:
		result = a.executeCreate(ctx, svc, sessionKey, act)
	case planner.UpdateAction:
		result = a.executeUpdate(ctx, svc, sessionKey, act)
	case planner.DeleteAction:
		result = a.executeDelete(ctx, svc, sessionKey, act)
	case planner.ListAction:
		result = a.executeList(ctx, svc, act)
	case planner.GetAction:
		result = a.executeGet(ctx, svc, act)
	default:
		result = ActionResult{
			Action: string(action.Kind()),
			Error:  fmt.Sprintf("unsupported action kind %q", action.Kind()),
		}
	}

	duration := time.Since(start)
	status := instrumentation.StatusSuccess
	if !result.Success {
		status = instrumentation.StatusError
	}
	a.metrics.RecordAction(ctx, result.Action, status, duration)

	if isMutating(action.Kind()) {
		inv := instrumentation.NewActionInvocation(result.Action).
			WithUser(userEmail, sessionKey).
			WithEvent(result.EventID)
		inv.StartTime = start
		a.audit.LogAction(ctx, inv.Complete(result.Success, result.Error))
	}

	a.logger.Debug("action executed",
		logging.Action(result.Action),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration))

	return result
}

func isMutating(kind planner.ActionKind) bool {
	switch kind {
	case planner.ActionCreate, planner.ActionUpdate, planner.ActionDelete:
		return true
	default:
		return false
	}
}

func (a *Agent) executeCreate(ctx context.Context, svc calendar.Service, sessionKey string, act planner.CreateAction) ActionResult {
	result := ActionResult{Action: string(planner.ActionCreate)}

	event := &calendarapi.Event{
		Summary:     act.Summary,
		Description: act.Description,
		Location:    act.Location,
		Start:       &calendarapi.EventDateTime{DateTime: act.StartDateTime, TimeZone: act.TimeZone},
		End:         &calendarapi.EventDateTime{DateTime: act.EndDateTime, TimeZone: act.TimeZone},
	}

	created, err := svc.CreateEvent(ctx, event)
	if err != nil {
		result.Error = calendar.ErrorMessage(err)
		return result
	}

	result.Success = true
	result.CanUndo = true
	result.EventID = created.Id
	result.Data = calendar.ToEventSummary(created)

	// Undoing a create only needs the assigned id; no snapshot required.
	a.history.Add(sessionKey, history.NewRecord(history.TypeCreate, created.Id, history.RollbackPayload{}))

	return result
}

func (a *Agent) executeUpdate(ctx context.Context, svc calendar.Service, sessionKey string, act planner.UpdateAction) ActionResult {
	result := ActionResult{Action: string(planner.ActionUpdate), EventID: act.EventID}

	// Snapshot taken immediately before this specific mutation; it is the
	// undo target, not some earlier state.
	original, err := svc.GetEvent(ctx, act.EventID)
	if err != nil {
		result.Error = calendar.ErrorMessage(err)
		return result
	}

	updated, err := svc.UpdateEvent(ctx, act.EventID, applyUpdate(original, act))
	if err != nil {
		result.Error = calendar.ErrorMessage(err)
		return result
	}

	result.Success = true
	result.CanUndo = true
	result.Data = calendar.ToEventSummary(updated)

	a.history.Add(sessionKey, history.NewRecord(history.TypeUpdate, act.EventID,
		history.RollbackPayload{OriginalEvent: original}))

	return result
}

// applyUpdate copies the event and overlays only the fields present in
// the action, leaving the original snapshot untouched.
func applyUpdate(original *calendarapi.Event, act planner.UpdateAction) *calendarapi.Event {
	updated := *original

	if act.Summary != "" {
		updated.Summary = act.Summary
	}
	if act.Description != "" {
		updated.Description = act.Description
	}
	if act.Location != "" {
		updated.Location = act.Location
	}
	if act.StartDateTime != "" {
		updated.Start = &calendarapi.EventDateTime{DateTime: act.StartDateTime}
	}
	if act.EndDateTime != "" {
		updated.End = &calendarapi.EventDateTime{DateTime: act.EndDateTime}
	}

	return &updated
}

func (a *Agent) executeList(ctx context.Context, svc calendar.Service, act planner.ListAction) ActionResult {
	result := ActionResult{Action: string(planner.ActionList)}

	opts := calendar.ListOptions{MaxResults: act.MaxResults}
	if act.TimeMin != "" {
		t, err := time.Parse(time.RFC3339, act.TimeMin)
		if err != nil {
			result.Error = fmt.Sprintf("invalid time_min %q", act.TimeMin)
			return result
		}
		opts.TimeMin = t
	}
	if act.TimeMax != "" {
		t, err := time.Parse(time.RFC3339, act.TimeMax)
		if err != nil {
			result.Error = fmt.Sprintf("invalid time_max %q", act.TimeMax)
			return result
		}
		opts.TimeMax = t
	}

	page, err := svc.ListEvents(ctx, opts)
	if err != nil {
		result.Error = calendar.ErrorMessage(err)
		return result
	}

	summaries := calendar.Summaries(page.Events)
	result.Success = true
	result.Data = map[string]any{
		"events": summaries,
		"count":  len(summaries),
	}
	// Read-only: never journaled, CanUndo stays false.

	return result
}

func (a *Agent) executeGet(ctx context.Context, svc calendar.Service, act planner.GetAction) ActionResult {
	result := ActionResult{Action: string(planner.ActionGet), EventID: act.EventID}

	event, err := svc.GetEvent(ctx, act.EventID)
	if err != nil {
		result.Error = calendar.ErrorMessage(err)
		return result
	}

	result.Success = true
	result.Data = calendar.ToEventSummary(event)

	return result
}
