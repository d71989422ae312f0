package ports

import (
	"context"

	"fulfillment-engine/internal/features/orders/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/shopspring/decimal"
)

// OrderRepository is the system of record for orders.
// This is a Secondary Port (Driven Port).
type OrderRepository interface {
	// Create stores a new order. It fails if the id is already taken.
	Create(ctx context.Context, order *domain.Order) error
	// Get returns the order or domain.ErrOrderNotFound.
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	// Update loads the order, applies fn and writes it back atomically.
	// A concurrent write between read and commit yields domain.ErrConcurrentModification.
	Update(ctx context.Context, orderID string, fn func(order *domain.Order) error) (*domain.Order, error)
}

// TimelineRecorder appends audit entries to an order's timeline.
type TimelineRecorder interface {
	RecordEvent(ctx context.Context, orderID string, event tracking.InternalEvent) error
}

// PaymentCapturer charges the customer at checkout.
type PaymentCapturer interface {
	// Capture returns the processor's transaction id.
	Capture(ctx context.Context, amount decimal.Decimal, reference, source string) (string, error)
}

// DiscountValidator validates discount codes against usage limits, minimum
// purchase and active date windows.
type DiscountValidator interface {
	// Validate returns the application or a *domain.DiscountRejectedError.
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, customerID string) (*domain.DiscountApplication, error)
}
