package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/calagent/internal/calendar"
)

// systemPrompt instructs the model to emit a single JSON plan object.
// The JSON shapes here must stay in sync with the action types in
// actions.go.
const systemPrompt = `You are a calendar assistant. Output ONLY valid JSON, nothing else. No thinking, no explanations before the JSON.

CRITICAL: Your entire response must be a single JSON object. Do not write any text before or after the JSON.

Response format:
{
  "reasoning": "Brief explanation",
  "actions": [...],
  "message": "Friendly message"
}

Available actions:

1. CREATE an event:
{
  "action": "create",
  "summary": "Event title",
  "start_datetime": "2026-03-01T10:00:00-06:00",
  "end_datetime": "2026-03-01T11:00:00-06:00",
  "description": "Optional description",
  "location": "Optional location",
  "timezone": "America/Chicago"
}

2. UPDATE an event (requires event_id):
{
  "action": "update",
  "event_id": "abc123",
  "summary": "New title",
  "start_datetime": "...",
  "end_datetime": "..."
}

3. DELETE an event:
{
  "action": "delete",
  "event_id": "abc123"
}

4. LIST events:
{
  "action": "list",
  "time_min": "2026-03-01T00:00:00Z",
  "time_max": "2026-03-31T23:59:59Z",
  "max_results": 10
}

5. GET a specific event:
{
  "action": "get",
  "event_id": "abc123"
}

Rules:
- Always use ISO 8601 datetime format with timezone
- The current date is provided in the user message
- Default timezone is UTC unless specified
- For relative times like "tomorrow at 3pm", calculate the actual datetime
- You can include multiple actions in the actions array
- If the user's request is unclear, use the "list" action to help them see their events
- ONLY output valid JSON, no markdown code blocks or other text
- IMPORTANT: When updating or deleting events, you MUST use the exact event_id from the provided calendar events list
- Match events by their summary/title when the user refers to them by name
- If no matching event is found for an update/delete request, explain this in the message`

// buildUserPrompt assembles the context block sent alongside the user's
// request: current time, the user's locale, and the existing events the
// model must reference by id.
func buildUserPrompt(req Request, now time.Time) string {
	parts := []string{fmt.Sprintf("Current datetime: %s", now.UTC().Format(time.RFC3339))}

	if req.UserTimezone != "" {
		parts = append(parts, fmt.Sprintf("User timezone: %s", req.UserTimezone))
	}
	if !req.UserDateTime.IsZero() {
		parts = append(parts, fmt.Sprintf("User local datetime: %s", req.UserDateTime.Format(time.RFC3339)))
	}
	if req.ChatContext != "" {
		parts = append(parts, "User-specific context:", req.ChatContext)
	}

	parts = append(parts, formatEventsContext(req.Events))
	parts = append(parts, fmt.Sprintf("User request: %s", req.Prompt))
	parts = append(parts, "Respond with valid JSON only:")

	return strings.Join(parts, "\n\n")
}

// formatEventsContext renders existing events so the model can reference
// them by id in update and delete actions.
func formatEventsContext(events []calendar.EventSummary) string {
	if len(events) == 0 {
		return "No upcoming events found."
	}

	lines := []string{"Existing calendar events (use these event_id values for update/delete):"}
	for _, event := range events {
		summary := event.Summary
		if summary == "" {
			summary = "No title"
		}
		lines = append(lines, fmt.Sprintf("  - event_id: %q", event.ID))
		lines = append(lines, fmt.Sprintf("    summary: %q", summary))
		lines = append(lines, fmt.Sprintf("    start: %s", formatEventTime(event.Start)))
		lines = append(lines, fmt.Sprintf("    end: %s", formatEventTime(event.End)))
	}

	return strings.Join(lines, "\n")
}

func formatEventTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}
