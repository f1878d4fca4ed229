package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// EventSummary is a simplified projection of a calendar event, used for
// interpreter context and operator-facing messages.
type EventSummary struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// ToEventSummary converts a Google Calendar event to an EventSummary.
// A nil event yields a zero summary.
func ToEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}

	summary.Start = parseEventTime(event.Start)
	summary.End = parseEventTime(event.End)

	return summary
}

// Summaries converts a slice of events to summaries, preserving order.
func Summaries(events []*calendar.Event) []EventSummary {
	if len(events) == 0 {
		return nil
	}
	summaries := make([]EventSummary, 0, len(events))
	for _, event := range events {
		summaries = append(summaries, ToEventSummary(event))
	}
	return summaries
}

// parseEventTime handles both timed (DateTime) and all-day (Date) events.
func parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// EventTitle returns the event summary or a placeholder for untitled
// events, never an empty string.
func EventTitle(event *calendar.Event) string {
	if event == nil || event.Summary == "" {
		return "(no title)"
	}
	return event.Summary
}

// serverAssignedFields clears every field whose value is assigned by the
// backend and cannot be submitted on creation.
func serverAssignedFields(event *calendar.Event) {
	event.Id = ""
	event.Etag = ""
	event.Created = ""
	event.Updated = ""
	event.Creator = nil
	event.Organizer = nil
	event.HtmlLink = ""
	event.ICalUID = ""
}

// SanitizeForRecreate returns a copy of event suitable for resubmission to
// the insert endpoint. The original event is not modified. The recreated
// event will receive a new identifier.
func SanitizeForRecreate(event *calendar.Event) *calendar.Event {
	if event == nil {
		return nil
	}
	clone := *event
	serverAssignedFields(&clone)
	return &clone
}
