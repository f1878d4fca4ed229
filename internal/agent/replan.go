package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/teemow/calagent/internal/calendar"
	"github.com/teemow/calagent/internal/logging"
	"github.com/teemow/calagent/internal/planner"
)

// retryFailedDeletes runs at most one recovery cycle for deletes whose
// verification exhausted its budget. The interpreter is asked again with
// fresh calendar context, and only delete actions from the second plan
// are executed; anything else it proposes is discarded. Second-pass
// results are appended to the original list, and a second round of
// failures never triggers another cycle.
func (a *Agent) retryFailedDeletes(ctx context.Context, svc calendar.Service, sessionKey string, planReq planner.Request, results []ActionResult, message string) ([]ActionResult, string) {
	var failed []ActionResult
	for _, r := range results {
		if r.RetryNeeded {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return results, message
	}

	log := logging.WithSession(a.logger, sessionKey)
	log.Info("re-planning unconfirmed deletes", "failed", len(failed))

	// Fresh context so the interpreter sees what actually survived.
	retryReq := planReq
	retryReq.Prompt = buildRetryPrompt(planReq.Prompt, failed)
	retryReq.Events = a.contextEvents(ctx, svc)
	retryReq.ChatContext = ""

	plan, err := a.planner.Plan(ctx, retryReq)
	if err != nil {
		log.Warn("re-plan failed, keeping original results", logging.Err(err))
		a.metrics.RecordReplanCycle(ctx, "plan_failed")
		return results, message
	}

	recovered := 0
	for _, del := range plan.Deletes() {
		// Second-round failures keep their retry flag; the cycle still runs
		// only once because Chat calls this pass exactly once.
		res := a.executeAction(ctx, svc, sessionKey, planReq.UserEmail, del)
		if res.Success && previouslyFailed(failed, del.EventID) {
			recovered++
		}
		results = append(results, res)
	}

	if recovered > 0 {
		a.metrics.RecordReplanCycle(ctx, "recovered")
		message = fmt.Sprintf("Retry succeeded: %d of %d unconfirmed deletions completed.", recovered, len(failed))
	} else {
		a.metrics.RecordReplanCycle(ctx, "unrecovered")
	}

	return results, message
}

func previouslyFailed(failed []ActionResult, eventID string) bool {
	for _, r := range failed {
		if r.EventID == eventID {
			return true
		}
	}
	return false
}

// buildRetryPrompt names the events whose deletion did not stick so the
// interpreter can target them directly, alongside the original request.
func buildRetryPrompt(original string, failed []ActionResult) string {
	var b strings.Builder
	b.WriteString("The following events were supposed to be deleted but still exist. Delete them:\n")
	for _, r := range failed {
		title := r.EventSummary
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&b, "- %s (event id %s)\n", title, r.EventID)
	}
	fmt.Fprintf(&b, "\nOriginal request: %s\n", original)
	return b.String()
}
