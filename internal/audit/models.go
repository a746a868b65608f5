package audit

import "time"

// Event is an append-only record in the operational trail. The trail exists
// so an operator can reconstruct after the fact why the service called (or
// kept calling); events are never updated or deleted.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	CallSID   string    `json:"call_sid,omitempty"`
	Message   string    `json:"message,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction EventType = "admin_action"
	EventTypeCallStatus  EventType = "call_status"
	EventTypeDoorbell    EventType = "doorbell"
)
