package domain

import (
	"errors"
	"sort"
	"time"

	carriers "fulfillment-engine/internal/features/carriers/domain"
)

// EventSource tells where a timeline entry came from.
type EventSource string

const (
	// SourceCarrier marks events reported by the carrier. Replaced wholesale on refresh.
	SourceCarrier EventSource = "carrier"
	// SourceInternal marks events recorded by the engine itself. Append-only.
	SourceInternal EventSource = "internal"
)

// Internal event kinds.
const (
	KindOrderPlaced   = "order_placed"
	KindStatusChanged = "status_changed"
	KindLabelBought   = "label_purchased"
	KindLabelVoided   = "label_voided"
	KindReturnOpened  = "return_opened"
	KindReturnUpdated = "return_updated"
)

// WarningTrackingUnavailable is the code of the refresh warning.
const WarningTrackingUnavailable = "TRACKING_UNAVAILABLE"

var (
	// ErrNoTrackingInfo is returned when the order has neither an active label nor manual tracking.
	ErrNoTrackingInfo = errors.New("order has no tracking information")
)

// CarrierSnapshot is the last successful carrier synchronization of an order.
type CarrierSnapshot struct {
	OrderID        string                   `json:"order_id"`
	Carrier        string                   `json:"carrier"`
	TrackingNumber string                   `json:"tracking_number"`
	Events         []carriers.TrackingEvent `json:"events"`
	RefreshedAt    time.Time                `json:"refreshed_at"`
}

// InternalEvent is a synthetic audit entry such as "status changed to SHIPPED by staff".
type InternalEvent struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Actor       string    `json:"actor"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	// OrderStatus is the order status right after the event.
	OrderStatus string `json:"order_status,omitempty"`
}

// TimelineEvent is one merged entry of the order timeline.
type TimelineEvent struct {
	OccurredAt  time.Time               `json:"occurred_at"`
	Source      EventSource             `json:"source"`
	Status      carriers.TrackingStatus `json:"status,omitempty"`
	Code        string                  `json:"code,omitempty"`
	Location    string                  `json:"location,omitempty"`
	Description string                  `json:"description"`
	Detail      string                  `json:"detail,omitempty"`
	Actor       string                  `json:"actor,omitempty"`
	Kind        string                  `json:"kind,omitempty"`
}

// RefreshWarning is attached to a timeline served from stale data.
type RefreshWarning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Timeline is the normalized tracking view of an order.
type Timeline struct {
	OrderID        string                  `json:"order_id"`
	Carrier        string                  `json:"carrier,omitempty"`
	TrackingNumber string                  `json:"tracking_number,omitempty"`
	Status         carriers.TrackingStatus `json:"status"`
	Events         []TimelineEvent         `json:"events"`
	RefreshedAt    *time.Time              `json:"refreshed_at,omitempty"`
	Warning        *RefreshWarning         `json:"warning,omitempty"`
}

// SortCarrierEvents orders carrier events by reported timestamp, keeping the
// carrier's order for equal timestamps.
func SortCarrierEvents(events []carriers.TrackingEvent) []carriers.TrackingEvent {
	sorted := make([]carriers.TrackingEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})
	return sorted
}

// CurrentStatus returns the latest meaningful carrier status, UNKNOWN if none.
func CurrentStatus(events []carriers.TrackingEvent) carriers.TrackingStatus {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Status != "" && events[i].Status != carriers.TrackingStatusUnknown {
			return events[i].Status
		}
	}
	return carriers.TrackingStatusUnknown
}

// BuildTimeline merges carrier and internal events in timestamp order.
// snapshot may be nil when the order was never synchronized.
func BuildTimeline(orderID string, snapshot *CarrierSnapshot, internal []InternalEvent) *Timeline {
	timeline := &Timeline{
		OrderID: orderID,
		Status:  carriers.TrackingStatusUnknown,
		Events:  make([]TimelineEvent, 0, len(internal)),
	}

	if snapshot != nil {
		timeline.Carrier = snapshot.Carrier
		timeline.TrackingNumber = snapshot.TrackingNumber
		timeline.Status = CurrentStatus(snapshot.Events)
		refreshed := snapshot.RefreshedAt
		timeline.RefreshedAt = &refreshed

		for _, e := range snapshot.Events {
			timeline.Events = append(timeline.Events, TimelineEvent{
				OccurredAt:  e.OccurredAt,
				Source:      SourceCarrier,
				Status:      e.Status,
				Code:        e.Code,
				Location:    e.Location,
				Description: e.Description,
				Detail:      e.Detail,
			})
		}
	}

	for _, e := range internal {
		timeline.Events = append(timeline.Events, TimelineEvent{
			OccurredAt:  e.OccurredAt,
			Source:      SourceInternal,
			Description: e.Description,
			Actor:       e.Actor,
			Kind:        e.Kind,
		})
	}

	sort.SliceStable(timeline.Events, func(i, j int) bool {
		return timeline.Events[i].OccurredAt.Before(timeline.Events[j].OccurredAt)
	})
	return timeline
}
