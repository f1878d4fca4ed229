package agent

import (
	"context"
	"fmt"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/instrumentation"
	"github.com/teemow/calagent/internal/logging"
)

// Undo reverts the most recent not-yet-undone action in the session.
// Exactly one level deep: each call targets one record, and a record is
// marked rolled back only after the reverting call succeeded. Backend
// failures produce a non-success result, never an error; nothing is
// re-journaled or retried.
func (a *Agent) Undo(ctx context.Context, svc calendar.Service, sessionKey string) UndoResult {
	record := a.history.GetLast(sessionKey)
	if record == nil {
		return UndoResult{Message: "No actions to undo."}
	}

	log := logging.WithSession(a.logger, sessionKey)
	inv := instrumentation.NewActionInvocation("undo_" + string(record.ActionType)).
		WithUser("", sessionKey).
		WithEvent(record.EventID)

	var result UndoResult
	switch record.ActionType {
	case history.TypeCreate:
		result = a.undoCreate(ctx, svc, record)
	case history.TypeUpdate:
		result = a.undoUpdate(ctx, svc, record)
	case history.TypeDelete:
		result = a.undoDelete(ctx, svc, record)
	default:
		result = UndoResult{Message: fmt.Sprintf("Cannot undo action of type %q.", record.ActionType)}
	}

	status := instrumentation.StatusError
	if result.Success {
		a.history.MarkRolledBack(sessionKey, record.ID)
		status = instrumentation.StatusSuccess
		result.UndoneAction = string(record.ActionType)
	}

	a.metrics.RecordUndo(ctx, string(record.ActionType), status)
	a.audit.LogAction(ctx, inv.Complete(result.Success, result.Message))
	log.Info("undo processed",
		logging.Action(string(record.ActionType)),
		logging.EventID(record.EventID),
		logging.Status(status))

	return result
}

// undoCreate deletes the event the original action created. A target
// that is already gone still counts as undone.
func (a *Agent) undoCreate(ctx context.Context, svc calendar.Service, record *history.ActionRecord) UndoResult {
	if err := svc.DeleteEvent(ctx, record.EventID); err != nil && !calendar.IsNotFound(err) {
		return UndoResult{Message: fmt.Sprintf("Undo failed: %s", calendar.ErrorMessage(err))}
	}
	return UndoResult{
		Success: true,
		Message: "Event creation undone: the event was deleted.",
		Data:    map[string]any{"deleted": record.EventID},
	}
}

// undoUpdate restores the pre-update snapshot with a full replace.
func (a *Agent) undoUpdate(ctx context.Context, svc calendar.Service, record *history.ActionRecord) UndoResult {
	original := record.Rollback.OriginalEvent
	if original == nil {
		return UndoResult{Message: "Undo failed: no snapshot of the original event."}
	}

	restored, err := svc.UpdateEvent(ctx, record.EventID, original)
	if err != nil {
		return UndoResult{Message: fmt.Sprintf("Undo failed: %s", calendar.ErrorMessage(err))}
	}
	return UndoResult{
		Success: true,
		Message: "Event update undone: the previous state was restored.",
		Data:    calendar.ToEventSummary(restored),
	}
}

// undoDelete recreates the deleted event from its snapshot. The backend
// assigns a fresh id; the original identity is not recoverable.
func (a *Agent) undoDelete(ctx context.Context, svc calendar.Service, record *history.ActionRecord) UndoResult {
	snapshot := record.Rollback.DeletedEvent
	if snapshot == nil {
		return UndoResult{Message: "Undo failed: no snapshot of the deleted event."}
	}

	recreated, err := svc.CreateEvent(ctx, calendar.SanitizeForRecreate(snapshot))
	if err != nil {
		return UndoResult{Message: fmt.Sprintf("Undo failed: %s", calendar.ErrorMessage(err))}
	}
	return UndoResult{
		Success: true,
		Message: fmt.Sprintf("Event deletion undone: %q was recreated with a new id.", calendar.EventTitle(recreated)),
		Data:    calendar.ToEventSummary(recreated),
	}
}
