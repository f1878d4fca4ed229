package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError indicates that the interpreter's output could not be parsed
// into a valid plan. It is surfaced to clients as a malformed-request
// failure, distinct from transport errors.
type ParseError struct {
	Detail string
	Raw    string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable plan: %s", e.Detail)
}

// ParsePlan parses raw model output into a Plan. Markdown code fences are
// tolerated and stripped before decoding.
func ParsePlan(raw string) (*Plan, error) {
	text := stripFences(strings.TrimSpace(raw))

	var plan Plan
	if err := json.Unmarshal([]byte(text), &plan); err != nil {
		return nil, &ParseError{Detail: err.Error(), Raw: raw}
	}

	if err := validatePlan(&plan); err != nil {
		return nil, &ParseError{Detail: err.Error(), Raw: raw}
	}

	return &plan, nil
}

// stripFences removes a surrounding markdown code block, if present.
func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// validatePlan checks the per-kind required fields the executor depends on.
func validatePlan(plan *Plan) error {
	if plan.Message == "" {
		return fmt.Errorf("missing message")
	}

	for i, action := range plan.Actions {
		switch a := action.(type) {
		case CreateAction:
			if a.Summary == "" || a.StartDateTime == "" || a.EndDateTime == "" {
				return fmt.Errorf("action %d: create requires summary, start_datetime and end_datetime", i)
			}
		case UpdateAction:
			if a.EventID == "" {
				return fmt.Errorf("action %d: update requires event_id", i)
			}
		case DeleteAction:
			if a.EventID == "" {
				return fmt.Errorf("action %d: delete requires event_id", i)
			}
		case GetAction:
			if a.EventID == "" {
				return fmt.Errorf("action %d: get requires event_id", i)
			}
		case ListAction:
			// No required fields.
		}
	}

	return nil
}
