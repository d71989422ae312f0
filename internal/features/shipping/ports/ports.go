package ports

import (
	"context"
	"time"

	carrierports "fulfillment-engine/internal/features/carriers/ports"
	orders "fulfillment-engine/internal/features/orders/domain"
	orderports "fulfillment-engine/internal/features/orders/ports"
	"fulfillment-engine/internal/features/shipping/domain"
)

// OrderReader loads orders for rating and labeling.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

// CarrierDirectory resolves the configured carrier gateways.
type CarrierDirectory interface {
	// All returns the gateways in provider order.
	All() []carrierports.CarrierGateway
	// ForRateID resolves a composed rate id to its gateway and native rate id.
	ForRateID(rateID string) (carrierports.CarrierGateway, string, error)
}

// LabelRepository persists labels and guards the one-active-label-per-order slot.
// This is a Secondary Port (Driven Port).
type LabelRepository interface {
	// Reserve atomically claims the order's label slot with token for ttl.
	// It reports false when the slot is held by an active label or another purchase.
	Reserve(ctx context.Context, orderID, token string, ttl time.Duration) (bool, error)
	// Release frees the slot if it is still held by token.
	Release(ctx context.Context, orderID, token string) error
	// Commit stores the label and applies attach to the order as one atomic write,
	// provided the slot is still held by token.
	Commit(ctx context.Context, token string, label *domain.ShippingLabel, attach func(order *orders.Order) error) (*orders.Order, error)
	// Active returns the active label of the order or domain.ErrLabelNotFound.
	Active(ctx context.Context, orderID string) (*domain.ShippingLabel, error)
	// List returns every label ever bought for the order, voided ones included.
	List(ctx context.Context, orderID string) ([]domain.ShippingLabel, error)
	// Void marks the active label voided, applies detach to the order and frees the slot.
	Void(ctx context.Context, orderID string, now time.Time, detach func(order *orders.Order, label *domain.ShippingLabel) error) (*domain.ShippingLabel, error)
}

// TimelineRecorder appends audit entries to an order's timeline.
type TimelineRecorder = orderports.TimelineRecorder
