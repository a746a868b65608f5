package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for trail events.
// It is append-only; no update or delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, n int) ([]Event, error)
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service records operational events. Recording is best-effort: callers
// must never fail a call flow on an audit error.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records a manual operator action.
func (s *Service) LogAdminAction(ctx context.Context, message, metadata string) error {
	return s.Append(ctx, Event{Type: EventTypeAdminAction, Message: message, Metadata: metadata})
}

// LogCallStatus records a carrier status transition for a call.
func (s *Service) LogCallStatus(ctx context.Context, callSID, status string) error {
	return s.Append(ctx, Event{Type: EventTypeCallStatus, CallSID: callSID, Message: status})
}

// LogDoorbell records a doorbell arm reported by the presence webhook or
// the manual activation endpoint.
func (s *Service) LogDoorbell(ctx context.Context, message string) error {
	return s.Append(ctx, Event{Type: EventTypeDoorbell, Message: message})
}

// Recent returns up to n recorded events, newest first.
func (s *Service) Recent(ctx context.Context, n int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	return s.repo.Recent(ctx, n)
}
