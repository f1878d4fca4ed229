package planner

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates the closed set of actions the interpreter may
// return. The set is stable by contract.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
	ActionList   ActionKind = "list"
	ActionGet    ActionKind = "get"
)

// Action is the sealed interface implemented by every action type.
type Action interface {
	Kind() ActionKind
}

// CreateAction schedules a new event.
type CreateAction struct {
	Summary       string `json:"summary"`
	StartDateTime string `json:"start_datetime"`
	EndDateTime   string `json:"end_datetime"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	TimeZone      string `json:"timezone,omitempty"`
}

// Kind implements Action.
func (CreateAction) Kind() ActionKind { return ActionCreate }

// UpdateAction modifies an existing event. Empty fields are left untouched.
type UpdateAction struct {
	EventID       string `json:"event_id"`
	Summary       string `json:"summary,omitempty"`
	StartDateTime string `json:"start_datetime,omitempty"`
	EndDateTime   string `json:"end_datetime,omitempty"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
}

// Kind implements Action.
func (UpdateAction) Kind() ActionKind { return ActionUpdate }

// DeleteAction removes an event.
type DeleteAction struct {
	EventID string `json:"event_id"`
}

// Kind implements Action.
func (DeleteAction) Kind() ActionKind { return ActionDelete }

// ListAction reads events within a time range.
type ListAction struct {
	TimeMin    string `json:"time_min,omitempty"`
	TimeMax    string `json:"time_max,omitempty"`
	MaxResults int64  `json:"max_results,omitempty"`
}

// Kind implements Action.
func (ListAction) Kind() ActionKind { return ActionList }

// GetAction reads a single event by ID.
type GetAction struct {
	EventID string `json:"event_id"`
}

// Kind implements Action.
func (GetAction) Kind() ActionKind { return ActionGet }

// Plan is the interpreter's parsed response: an ordered list of actions
// plus a human-readable message.
type Plan struct {
	Reasoning string
	Message   string
	Actions   []Action
}

// UnmarshalJSON decodes the wire shape of a plan, dispatching each action
// on its "action" discriminator.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw struct {
		Reasoning string            `json:"reasoning"`
		Message   string            `json:"message"`
		Actions   []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Reasoning = raw.Reasoning
	p.Message = raw.Message
	p.Actions = p.Actions[:0]

	for i, rawAction := range raw.Actions {
		action, err := decodeAction(rawAction)
		if err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		p.Actions = append(p.Actions, action)
	}

	return nil
}

// decodeAction unmarshals a single action based on its discriminator.
func decodeAction(data []byte) (Action, error) {
	var probe struct {
		Action ActionKind `json:"action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Action {
	case ActionCreate:
		var a CreateAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionUpdate:
		var a UpdateAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionDelete:
		var a DeleteAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionList:
		var a ListAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	case ActionGet:
		var a GetAction
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", probe.Action)
	}
}

// Deletes returns only the delete actions of a plan, in order. Used by the
// retry pass, which must never execute anything else from a second plan.
func (p *Plan) Deletes() []DeleteAction {
	var deletes []DeleteAction
	for _, action := range p.Actions {
		if del, ok := action.(DeleteAction); ok {
			deletes = append(deletes, del)
		}
	}
	return deletes
}
