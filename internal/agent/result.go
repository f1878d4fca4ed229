package agent

// ActionResult is the outcome of one executed action. A batch of actions
// yields one result per action, in execution order, whether or not the
// action succeeded.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	CanUndo bool   `json:"can_undo"`

	// RetryNeeded marks a delete whose effect could not be verified
	// within the attempt budget. Such deletes are not journaled and feed
	// the re-plan cycle.
	RetryNeeded bool `json:"retry_needed,omitempty"`

	// EventID and EventSummary identify the affected event where known;
	// for unverified deletes they let the retry prompt name the target.
	EventID      string `json:"event_id,omitempty"`
	EventSummary string `json:"event_summary,omitempty"`
}

// UndoResult is the outcome of an undo request. Backend failures during
// undo are reported here as a non-success result, never as an error.
type UndoResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UndoneAction string `json:"undone_action,omitempty"`
	Data         any    `json:"data,omitempty"`
}
