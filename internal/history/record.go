package history

import (
	"time"

	"github.com/google/uuid"
	calendar "google.golang.org/api/calendar/v3"
)

// ActionType identifies the mutation a record journals. Read-only actions
// are never journaled, so list/get do not appear here.
type ActionType string

const (
	TypeCreate ActionType = "create"
	TypeUpdate ActionType = "update"
	TypeDelete ActionType = "delete"
)

// RollbackPayload is the action-type-specific snapshot needed to undo a
// mutation. Both fields are nil for create (the event id alone suffices to
// delete it back); OriginalEvent holds the pre-update snapshot for update;
// DeletedEvent holds the full snapshot for delete.
type RollbackPayload struct {
	OriginalEvent *calendar.Event `json:"originalEvent,omitempty"`
	DeletedEvent  *calendar.Event `json:"deletedEvent,omitempty"`
}

// ActionRecord journals one executed reversible mutation together with the
// data needed to undo it. RolledBack is set-once: it starts false and is
// flipped to true by Store.MarkRolledBack, never reset.
type ActionRecord struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	ActionType ActionType      `json:"actionType"`
	EventID    string          `json:"eventId"`
	Rollback   RollbackPayload `json:"rollback"`
	RolledBack bool            `json:"rolledBack"`
}

// NewRecord creates a record with a fresh id and a UTC timestamp.
func NewRecord(actionType ActionType, eventID string, rollback RollbackPayload) *ActionRecord {
	return &ActionRecord{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ActionType: actionType,
		EventID:    eventID,
		Rollback:   rollback,
	}
}

// undoable reports whether the record is still eligible for undo.
func (r *ActionRecord) undoable() bool {
	if r.RolledBack {
		return false
	}
	switch r.ActionType {
	case TypeCreate, TypeUpdate, TypeDelete:
		return true
	default:
		return false
	}
}
