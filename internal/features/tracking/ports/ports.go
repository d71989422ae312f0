package ports

import (
	"context"

	carrierports "fulfillment-engine/internal/features/carriers/ports"
	orders "fulfillment-engine/internal/features/orders/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	"fulfillment-engine/internal/features/tracking/domain"
)

// TrackingRepository stores the carrier snapshot and internal events of each order.
// This is a Secondary Port (Driven Port).
type TrackingRepository interface {
	// ReplaceCarrierEvents overwrites the stored carrier events of the order.
	ReplaceCarrierEvents(ctx context.Context, snapshot *domain.CarrierSnapshot) error
	// CarrierSnapshot returns the last snapshot, nil if the order was never synchronized.
	CarrierSnapshot(ctx context.Context, orderID string) (*domain.CarrierSnapshot, error)
	// AppendInternal appends an internal event.
	AppendInternal(ctx context.Context, orderID string, event domain.InternalEvent) error
	// InternalEvents returns the internal events in insertion order.
	InternalEvents(ctx context.Context, orderID string) ([]domain.InternalEvent, error)
}

// OrderReader loads orders.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

// LabelReader returns the active label of an order.
type LabelReader interface {
	Active(ctx context.Context, orderID string) (*shipping.ShippingLabel, error)
}

// CarrierFinder resolves a carrier name to its gateway.
type CarrierFinder interface {
	Find(carrier string) (carrierports.CarrierGateway, error)
}
