package model

import "time"

// Lifecycle event types published toward downstream listeners.
const (
	EventResourceStarted  = "resource_started"
	EventResourceStopped  = "resource_stopped"
	EventResourceExecuted = "resource_executed"
	EventLabelUpdated     = "label_updated"
	EventStatusUpdated    = "status_updated"
)

// Event is one lifecycle notification. Delivery is fire-and-forget,
// at-least-once, with no ordering guarantee across resources. The ID lets
// consumers deduplicate redeliveries.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ResourceID string    `json:"resource_id"`
	GroupID    string    `json:"group_id"`
	Resource   *Resource `json:"resource"`
	Timestamp  time.Time `json:"timestamp"`
}
