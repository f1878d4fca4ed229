package calendar

import (
	"context"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// Backend operation names used as metric labels.
const (
	opList   = "list"
	opGet    = "get"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// OperationRecorder receives one measurement per backend call. It is the
// metrics surface of the instrumentation package, declared here so this
// package does not depend on it.
type OperationRecorder interface {
	RecordBackendOperation(ctx context.Context, operation, status string, duration time.Duration)
}

// WithMetrics wraps svc so every backend call is recorded with its
// operation name, outcome and duration. A nil recorder returns svc
// unchanged.
func WithMetrics(svc Service, recorder OperationRecorder) Service {
	if recorder == nil {
		return svc
	}
	return &instrumentedService{svc: svc, recorder: recorder}
}

type instrumentedService struct {
	svc      Service
	recorder OperationRecorder
}

func (s *instrumentedService) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.recorder.RecordBackendOperation(ctx, operation, status, time.Since(start))
}

func (s *instrumentedService) ListEvents(ctx context.Context, opts ListOptions) (*EventPage, error) {
	start := time.Now()
	page, err := s.svc.ListEvents(ctx, opts)
	s.record(ctx, opList, start, err)
	return page, err
}

func (s *instrumentedService) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	start := time.Now()
	event, err := s.svc.GetEvent(ctx, eventID)
	s.record(ctx, opGet, start, err)
	return event, err
}

func (s *instrumentedService) CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	start := time.Now()
	created, err := s.svc.CreateEvent(ctx, event)
	s.record(ctx, opCreate, start, err)
	return created, err
}

func (s *instrumentedService) UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	start := time.Now()
	updated, err := s.svc.UpdateEvent(ctx, eventID, event)
	s.record(ctx, opUpdate, start, err)
	return updated, err
}

func (s *instrumentedService) DeleteEvent(ctx context.Context, eventID string) error {
	start := time.Now()
	err := s.svc.DeleteEvent(ctx, eventID)
	s.record(ctx, opDelete, start, err)
	return err
}
