package contracts

import "time"

// EventType identifies a state-change event emitted by the engine.
type EventType string

const (
	EventInspectionSubmitted EventType = "inspection.submitted"
	EventInspectionApproved  EventType = "inspection.approved"
	EventInspectionRejected  EventType = "inspection.rejected"
	EventActionClosed        EventType = "action.closed"
	EventActionReassigned    EventType = "action.reassigned"
)

// Event is a state-change notification for downstream consumers
// (notifications, email, analytics). Emitted after the state change has
// been persisted.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Event struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	InspectionID string         `json:"inspection_id,omitempty"`
	ActionID     string         `json:"action_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	Payload      map[string]any `json:"payload,omitempty"`
}
