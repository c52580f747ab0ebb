package models

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DateLayout is the wire format of EstimatedDeliveryDate.
const DateLayout = "2006-01-02"

type TrackedOrder struct {
	ID                    uint64    `json:"id"`
	OrderID               uint64    `json:"orderId"`
	EstimatedDeliveryDate time.Time `json:"estimatedDeliveryDate"`
	CurrentStatus         string    `json:"currentStatus"`
	DeliveryAddress       string    `json:"deliveryAddress"`
}

type OrderCheckpoint struct {
	ID             uint64    `json:"id"`
	TrackedOrderID uint64    `json:"trackedOrderId"`
	Timestamp      time.Time `json:"timestamp"`
	Location       *string   `json:"location,omitempty"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
}

// TruncateDate drops the time component, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Newer reports whether a is after b in history order: by timestamp, then by id.
func Newer(a, b *OrderCheckpoint) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

// Latest returns the checkpoint with the maximum timestamp, nil for an empty slice.
func Latest(cps []*OrderCheckpoint) *OrderCheckpoint {
	var last *OrderCheckpoint
	for _, cp := range cps {
		if cp == nil {
			continue
		}
		if last == nil || Newer(cp, last) {
			last = cp
		}
	}
	return last
}
