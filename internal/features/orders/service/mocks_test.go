package service

import (
	"context"
	"testing"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/features/orders/adapters"
	"fulfillment-engine/internal/features/orders/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTimelineRecorder is a mock implementation of ports.TimelineRecorder.
type MockTimelineRecorder struct {
	mock.Mock
}

func (m *MockTimelineRecorder) RecordEvent(ctx context.Context, orderID string, event tracking.InternalEvent) error {
	args := m.Called(ctx, orderID, event)
	return args.Error(0)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockPaymentCapturer is a mock implementation of ports.PaymentCapturer.
type MockPaymentCapturer struct {
	mock.Mock
}

func (m *MockPaymentCapturer) Capture(ctx context.Context, amount decimal.Decimal, reference, source string) (string, error) {
	args := m.Called(ctx, amount, reference, source)
	return args.String(0), args.Error(1)
}

// MockDiscountValidator is a mock implementation of ports.DiscountValidator.
type MockDiscountValidator struct {
	mock.Mock
}

func (m *MockDiscountValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, customerID string) (*domain.DiscountApplication, error) {
	args := m.Called(ctx, code, subtotal, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DiscountApplication), args.Error(1)
}

func newRepository(t *testing.T) *adapters.RedisOrderRepository {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapters.NewRedisOrderRepository(adapter)
}

func seedOrder(t *testing.T, repo *adapters.RedisOrderRepository, id string, status domain.OrderStatus) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &domain.Order{
		ID:          id,
		OrderNumber: "LP-" + id,
		Status:      status,
		Customer:    domain.Customer{Email: id + "@example.com"},
		Items: []domain.OrderItem{
			{ID: "line-1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
		},
	}))
}
