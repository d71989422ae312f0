package domain

import "time"

// TrackingStatus is the carrier-neutral status of a tracking event.
type TrackingStatus string

const (
	// TrackingStatusInTransit covers acceptance, hub scans and out-for-delivery.
	TrackingStatusInTransit TrackingStatus = "IN_TRANSIT"
	// TrackingStatusDelivered indicates the shipment reached the recipient.
	TrackingStatusDelivered TrackingStatus = "DELIVERED"
	// TrackingStatusException indicates a delay, damage or failed delivery attempt.
	TrackingStatusException TrackingStatus = "EXCEPTION"
	// TrackingStatusReturned indicates the shipment is going back to the sender.
	TrackingStatusReturned TrackingStatus = "RETURNED"
	// TrackingStatusUnknown is used for codes a carrier adapter does not recognise.
	TrackingStatusUnknown TrackingStatus = "UNKNOWN"
)

// TrackingEvent is one carrier-reported waypoint.
type TrackingEvent struct {
	// OccurredAt is the carrier-reported timestamp.
	OccurredAt time.Time `json:"occurred_at"`
	Location   string    `json:"location"`
	// Code is the carrier's own status code.
	Code string `json:"code"`
	// Status is Code mapped onto the shared vocabulary.
	Status      TrackingStatus `json:"status"`
	Description string         `json:"description"`
	Detail      string         `json:"detail,omitempty"`
}
