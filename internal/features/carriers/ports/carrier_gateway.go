package ports

import (
	"context"

	"fulfillment-engine/internal/features/carriers/domain"
)

// CarrierGateway wraps one external carrier's rate, label and tracking API.
// Implementations map the carrier's errors onto the shared domain sentinels
// and its status codes onto domain.TrackingStatus.
type CarrierGateway interface {
	// Code is the short carrier identifier used as the rate id prefix (e.g. "ups").
	Code() string
	// SupportsCarrier returns true if this gateway serves the given carrier name.
	SupportsCarrier(name string) bool
	// GetRates prices the shipment across the carrier's service levels.
	GetRates(ctx context.Context, req domain.RateRequest) ([]domain.Rate, error)
	// PurchaseLabel buys the label for a previously quoted rate.
	PurchaseLabel(ctx context.Context, req domain.LabelRequest) (*domain.PurchasedLabel, error)
	// GetTrackingEvents returns the carrier's full event history for a tracking number.
	GetTrackingEvents(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error)
}
