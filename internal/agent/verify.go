package agent

import (
	"context"
	"log/slog"

	calendarapi "google.golang.org/api/calendar/v3"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/history"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
)

// deleteStatus is the terminal outcome of a verified delete.
type deleteStatus int

const (
	// deleteConfirmed means the event is gone: either a verification
	// fetch returned not-found, or the delete call itself reported the
	// event already absent.
	deleteConfirmed deleteStatus = iota

	// deleteTargetMissing means the pre-check found no such event, so
	// there was nothing to delete and nothing to journal.
	deleteTargetMissing

	// deleteUnconfirmed means the attempt budget ran out while the
	// event was still observable.
	deleteUnconfirmed

	// deleteErrored means a delete call failed with a non-recoverable
	// error, or a wait between attempts was cancelled.
	deleteErrored
)

func (s deleteStatus) String() string {
	switch s {
	case deleteConfirmed:
		return "confirmed"
	case deleteTargetMissing:
		return "target_missing"
	case deleteUnconfirmed:
		return "unconfirmed"
	case deleteErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// deleteOutcome carries everything executeDelete needs to build the
// action result and the journal entry.
type deleteOutcome struct {
	status   deleteStatus
	snapshot *calendarapi.Event
	attempts int
	err      error
}

func (a *Agent) executeDelete(ctx context.Context, svc calendar.Service, sessionKey string, act planner.DeleteAction) ActionResult {
	result := ActionResult{Action: string(planner.ActionDelete), EventID: act.EventID}

	outcome := a.deleteWithVerify(ctx, svc, act.EventID)
	a.metrics.RecordDeleteVerify(ctx, outcome.status.String(), outcome.attempts)

	switch outcome.status {
	case deleteConfirmed:
		result.Success = true
		result.CanUndo = true
		result.Data = map[string]any{"deleted": act.EventID}
		if outcome.snapshot != nil {
			result.EventSummary = calendar.EventTitle(outcome.snapshot)
			a.history.Add(sessionKey, history.NewRecord(history.TypeDelete, act.EventID,
				history.RollbackPayload{DeletedEvent: outcome.snapshot}))
		}

	case deleteTargetMissing:
		result.Error = "Event not found, possibly already deleted."

	case deleteUnconfirmed:
		result.RetryNeeded = true
		result.Error = "Delete could not be confirmed; the event may still exist."
		if outcome.snapshot != nil {
			result.EventSummary = calendar.EventTitle(outcome.snapshot)
		}

	case deleteErrored:
		result.Error = calendar.ErrorMessage(outcome.err)
	}

	return result
}

// deleteVerifyState enumerates the phases of a verified delete.
type deleteVerifyState int

const (
	stateAttemptDelete deleteVerifyState = iota
	stateVerify
	stateRetry
)

// deleteWithVerify drives the delete through an explicit state machine:
// pre-check the target exists, issue the delete, then re-fetch after a
// grace delay to confirm it is really gone. A still-visible event earns
// one more attempt after a backoff before the budget is exhausted.
//
// Verification errors other than not-found are treated as confirmation:
// the delete call itself succeeded, and re-deleting on a flaky read
// would be worse than trusting the write.
func (a *Agent) deleteWithVerify(ctx context.Context, svc calendar.Service, eventID string) deleteOutcome {
	log := a.logger.With(logging.EventID(eventID))

	snapshot, err := svc.GetEvent(ctx, eventID)
	if err != nil {
		if calendar.IsNotFound(err) {
			return deleteOutcome{status: deleteTargetMissing}
		}
		return deleteOutcome{status: deleteErrored, err: err}
	}

	maxAttempts := a.config.DeleteAttempts
	attempts := 0
	state := stateAttemptDelete

	for {
		switch state {
		case stateAttemptDelete:
			attempts++
			err := svc.DeleteEvent(ctx, eventID)
			switch {
			case err == nil:
				state = stateVerify
			case calendar.IsNotFound(err):
				// Already gone, delete is idempotent.
				return deleteOutcome{status: deleteConfirmed, snapshot: snapshot, attempts: attempts}
			case attempts < maxAttempts:
				log.Warn("delete attempt failed, retrying",
					slog.Int("attempt", attempts), logging.Err(err))
				state = stateRetry
			default:
				return deleteOutcome{status: deleteErrored, snapshot: snapshot, attempts: attempts, err: err}
			}

		case stateVerify:
			// Give the backend a moment to settle before reading back.
			if err := a.sleep(ctx, a.config.VerifyGraceDelay); err != nil {
				return deleteOutcome{status: deleteConfirmed, snapshot: snapshot, attempts: attempts}
			}
			_, err := svc.GetEvent(ctx, eventID)
			switch {
			case calendar.IsNotFound(err):
				return deleteOutcome{status: deleteConfirmed, snapshot: snapshot, attempts: attempts}
			case err != nil:
				// Unverifiable, trust the successful delete call.
				log.Warn("delete verification unreadable, assuming confirmed", logging.Err(err))
				return deleteOutcome{status: deleteConfirmed, snapshot: snapshot, attempts: attempts}
			case attempts < maxAttempts:
				log.Info("event still present after delete, retrying",
					slog.Int("attempt", attempts))
				state = stateRetry
			default:
				return deleteOutcome{status: deleteUnconfirmed, snapshot: snapshot, attempts: attempts}
			}

		case stateRetry:
			if err := a.sleep(ctx, a.config.VerifyBackoff); err != nil {
				return deleteOutcome{status: deleteErrored, snapshot: snapshot, attempts: attempts, err: err}
			}
			state = stateAttemptDelete
		}
	}
}
