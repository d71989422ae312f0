package ports

import (
	"context"

	orders "fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/returns/domain"

	"github.com/shopspring/decimal"
)

// ReturnRepository persists returns grouped by order.
// This is a Secondary Port (Driven Port).
type ReturnRepository interface {
	// Create stores ret after check accepted the order's existing returns,
	// atomically with respect to other returns of the same order.
	Create(ctx context.Context, ret *domain.Return, check func(existing []domain.Return) error) error
	// Get returns a return by id.
	Get(ctx context.Context, returnID string) (*domain.Return, error)
	// ListByOrder returns the order's returns in creation order.
	ListByOrder(ctx context.Context, orderID string) ([]domain.Return, error)
	// Update applies fn under optimistic locking.
	Update(ctx context.Context, returnID string, fn func(ret *domain.Return) error) (*domain.Return, error)
}

// OrderReader loads orders.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
}

// PaymentRefunder moves refund money through the payment processor.
type PaymentRefunder interface {
	// Refund returns the processor's refund reference. idempotencyKey makes
	// repeated calls for the same return safe.
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error)
}
