package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultCalendarID is the calendar used when none is specified.
const DefaultCalendarID = "primary"

// ListOptions bounds an event listing.
type ListOptions struct {
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int64
	PageToken  string
	Query      string
}

// EventPage is one page of results from ListEvents.
type EventPage struct {
	Events        []*calendar.Event
	NextPageToken string
}

// Service is the calendar backend surface consumed by the agent and the
// HTTP API. *Client implements it against the Google Calendar API.
type Service interface {
	ListEvents(ctx context.Context, opts ListOptions) (*EventPage, error)
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
	CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client wraps the Google Calendar service for a single access token.
// Clients are cheap to construct and are built per request; the token is
// held by the underlying HTTP transport, never by this struct.
type Client struct {
	svc        *calendar.Service
	calendarID string
}

// NewClient creates a Calendar client authenticated with the given OAuth2
// access token. The token is used as-is; refresh is the caller's concern.
func NewClient(ctx context.Context, accessToken string) (*Client, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token cannot be empty")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})

	svc, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: DefaultCalendarID,
	}, nil
}

// WithCalendarID returns a copy of the client targeting a different
// calendar than the default primary one.
func (c *Client) WithCalendarID(calendarID string) *Client {
	clone := *c
	clone.calendarID = calendarID
	return &clone
}

// ListEvents lists events within a time range, expanded to single
// instances and ordered by start time.
func (c *Client) ListEvents(ctx context.Context, opts ListOptions) (*EventPage, error) {
	timeMin := opts.TimeMin
	if timeMin.IsZero() {
		// timeMin is required when ordering expanded instances by start time.
		timeMin = time.Now().UTC()
	}

	call := c.svc.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(timeMin.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	if !opts.TimeMax.IsZero() {
		call = call.TimeMax(opts.TimeMax.Format(time.RFC3339))
	}
	if opts.MaxResults > 0 {
		call = call.MaxResults(opts.MaxResults)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}
	if opts.Query != "" {
		call = call.Q(opts.Query)
	}

	events, err := call.Do()
	if err != nil {
		return nil, wrapError("list events", err)
	}

	return &EventPage{
		Events:        events.Items,
		NextPageToken: events.NextPageToken,
	}, nil
}

// GetEvent retrieves a specific event by ID.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	event, err := c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get event", err)
	}
	return event, nil
}

// CreateEvent creates a new calendar event and returns the event as stored
// by the backend, including its assigned ID.
func (c *Client) CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("create event", err)
	}
	return created, nil
}

// UpdateEvent replaces an event with the given body. Callers that want a
// partial update must fetch the current event and modify it first; the
// agent relies on this full-replace semantic for rollback.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.svc.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("update event", err)
	}
	return updated, nil
}

// DeleteEvent deletes a calendar event.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return wrapError("delete event", err)
	}
	return nil
}
