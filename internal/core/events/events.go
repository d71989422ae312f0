package events

import (
	"context"
	"time"
)

// Event types published by the fulfillment engine.
const (
	OrderPlaced            = "order.placed"
	OrderStatusChanged     = "order.status_changed"
	LabelPurchased         = "shipping.label_purchased"
	LabelVoided            = "shipping.label_voided"
	TrackingRefreshed      = "shipping.tracking_refreshed"
	ReturnCreated          = "return.created"
	ReturnStatusChanged    = "return.status_changed"
	ReturnRestockRequested = "return.restock_requested"
)

// Event is the envelope of every published domain event.
type Event struct {
	// Type is one of the event type constants and selects the topic.
	Type string `json:"type"`
	// Key is the partitioning key, usually the order id.
	Key string `json:"key"`
	// OccurredAt is when the state change was committed.
	OccurredAt time.Time `json:"occurred_at"`
	// Payload is the event-specific body.
	Payload any `json:"payload"`
}

// New builds an event stamped with the current time.
func New(eventType, key string, payload any) Event {
	return Event{
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher sends domain events to downstream consumers (notifications, inventory, analytics).
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
