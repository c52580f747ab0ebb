package messages

import "time"

// CheckpointReported is published by carriers and warehouse scanners when a shipment
// reaches a waypoint. Timestamp may be omitted; the receive time is used then.
type CheckpointReported struct {
	TrackedOrderID uint64     `json:"tracked_order_id" validate:"required"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	Location       *string    `json:"location,omitempty"`
	Description    string     `json:"description" validate:"required"`
	Status         string     `json:"status" validate:"required"`
}

// Header names used on dead-lettered messages.
const (
	HeaderError       = "error"
	HeaderSourceTopic = "source_topic"
)
