package ports

import (
	"context"

	orders "fulfillment-engine/internal/features/orders/domain"
	returns "fulfillment-engine/internal/features/returns/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"
)

// Checkout places orders.
type Checkout interface {
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error)
}

// OrderLifecycle drives the order state machine.
type OrderLifecycle interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	Transition(ctx context.Context, orderID string, target orders.OrderStatus, meta orders.TransitionMetadata) (*orders.Order, error)
	BulkTransition(ctx context.Context, orderIDs []string, target orders.OrderStatus, meta orders.TransitionMetadata) *orders.BulkResult
}

// RateShopper quotes every carrier for an order.
type RateShopper interface {
	ShopRates(ctx context.Context, order *orders.Order) (*shipping.RateQuote, error)
}

// LabelService buys and voids labels.
type LabelService interface {
	PurchaseLabel(ctx context.Context, orderID, rateID string) (*shipping.ShippingLabel, *orders.Order, error)
	VoidLabel(ctx context.Context, orderID, actor string) (*shipping.ShippingLabel, error)
	ActiveLabel(ctx context.Context, orderID string) (*shipping.ShippingLabel, error)
}

// TrackingService synchronizes and serves order timelines.
type TrackingService interface {
	Refresh(ctx context.Context, orderID string) (*tracking.Timeline, error)
	Timeline(ctx context.Context, orderID string) (*tracking.Timeline, error)
}

// ReturnLifecycle drives the return state machine.
type ReturnLifecycle interface {
	CreateReturn(ctx context.Context, req returns.CreateReturnRequest) (*returns.Return, error)
	GetReturn(ctx context.Context, returnID string) (*returns.Return, error)
	ListReturns(ctx context.Context, orderID string) ([]returns.Return, error)
	Transition(ctx context.Context, returnID string, target returns.ReturnStatus, meta returns.TransitionMetadata) (*returns.Return, error)
	RecordInspection(ctx context.Context, returnID string, inspections []returns.Inspection) (*returns.Return, error)
}
