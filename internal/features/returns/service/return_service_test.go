package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/core/events"
	orderadapters "fulfillment-engine/internal/features/orders/adapters"
	orders "fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/returns/adapters"
	"fulfillment-engine/internal/features/returns/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRefunder is a mock implementation of PaymentRefunder.
type MockRefunder struct {
	mock.Mock
}

func (m *MockRefunder) Refund(ctx context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	args := m.Called(ctx, transactionID, amount, idempotencyKey)
	return args.String(0), args.Error(1)
}

// MockTimelineRecorder is a mock implementation of TimelineRecorder.
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

func ofType(eventType string) interface{} {
	return mock.MatchedBy(func(e events.Event) bool { return e.Type == eventType })
}

type fixture struct {
	service   *ReturnService
	orders    *orderadapters.RedisOrderRepository
	refunder  *MockRefunder
	timeline  *MockTimelineRecorder
	publisher *MockPublisher
}

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, policy domain.Policy) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		orders:    orderadapters.NewRedisOrderRepository(store),
		refunder:  new(MockRefunder),
		timeline:  new(MockTimelineRecorder),
		publisher: new(MockPublisher),
	}
	f.timeline.On("RecordEvent", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.service = NewReturnService(adapters.NewRedisReturnRepository(store), f.orders, f.refunder, f.timeline, f.publisher, policy)
	f.service.now = func() time.Time { return testNow }

	delivered := testNow.Add(-72 * time.Hour)
	require.NoError(t, f.orders.Create(context.Background(), &orders.Order{
		ID:          "order-1",
		OrderNumber: "LP-0001",
		Status:      orders.OrderStatusDelivered,
		Items: []orders.OrderItem{
			{ID: "line-1", Name: "Turtle Tee", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
			{ID: "line-2", Name: "Shell Mug", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		},
		Subtotal:             decimal.NewFromInt(40),
		Shipping:             decimal.RequireFromString("5.95"),
		Tax:                  decimal.RequireFromString("3.30"),
		Total:                decimal.RequireFromString("49.25"),
		PaymentTransactionID: "ch_123",
		DeliveredAt:          &delivered,
	}))
	return f
}

func defaultPolicy() domain.Policy {
	return domain.Policy{Window: 30 * 24 * time.Hour}
}

func (f *fixture) open(t *testing.T, qty int) *domain.Return {
	t.Helper()
	ret, err := f.service.CreateReturn(context.Background(), domain.CreateReturnRequest{
		OrderID: "order-1",
		Items:   []domain.ItemRequest{{OrderItemID: "line-2", Quantity: qty}},
		Reason:  domain.ReasonChangedMind,
	})
	require.NoError(t, err)
	return ret
}

func (f *fixture) advance(t *testing.T, returnID string, path ...domain.ReturnStatus) {
	t.Helper()
	for _, target := range path {
		_, err := f.service.Transition(context.Background(), returnID, target, domain.TransitionMetadata{Actor: "staff@example.com"})
		require.NoError(t, err, target)
	}
}

var toRefundPending = []domain.ReturnStatus{
	domain.ReturnStatusApproved,
	domain.ReturnStatusReceived,
	domain.ReturnStatusInspecting,
	domain.ReturnStatusRefundPending,
}

func TestReturnService_CreateReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("refund amount covers the returned items", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())

		ret := f.open(t, 2)
		assert.Equal(t, domain.ReturnStatusPending, ret.Status)
		assert.Equal(t, "20.00", ret.RefundAmount.StringFixed(2))
		assert.Regexp(t, `^RMA-[0-9A-F]{8}$`, ret.ReturnNumber)
		require.Len(t, ret.Items, 1)
		assert.Equal(t, "Shell Mug", ret.Items[0].Name)

		stored, err := f.service.GetReturn(ctx, ret.ID)
		require.NoError(t, err)
		assert.True(t, stored.RefundAmount.Equal(ret.RefundAmount))

		f.publisher.AssertCalled(t, "Publish", mock.Anything, ofType(events.ReturnCreated))
		f.timeline.AssertCalled(t, "RecordEvent", mock.Anything, "order-1", mock.MatchedBy(func(e tracking.InternalEvent) bool {
			return e.Kind == tracking.KindReturnOpened
		}))
	})

	t.Run("quantity cannot exceed what remains", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.open(t, 1)

		_, err := f.service.CreateReturn(ctx, domain.CreateReturnRequest{
			OrderID: "order-1",
			Items:   []domain.ItemRequest{{OrderItemID: "line-2", Quantity: 2}},
			Reason:  domain.ReasonDefective,
		})
		assert.ErrorIs(t, err, domain.ErrNotReturnable)

		list, err := f.service.ListReturns(ctx, "order-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("cancelled returns free their quantity", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		first := f.open(t, 2)
		f.advance(t, first.ID, domain.ReturnStatusCancelled)

		second := f.open(t, 2)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("outside the window", func(t *testing.T) {
		f := newFixture(t, domain.Policy{Window: 24 * time.Hour})

		_, err := f.service.CreateReturn(ctx, domain.CreateReturnRequest{
			OrderID: "order-1",
			Items:   []domain.ItemRequest{{OrderItemID: "line-1", Quantity: 1}},
			Reason:  domain.ReasonSizeIssue,
		})
		assert.ErrorIs(t, err, domain.ErrNotReturnable)
	})

	t.Run("full return includes shipping when configured", func(t *testing.T) {
		f := newFixture(t, domain.Policy{Window: 30 * 24 * time.Hour, IncludeShipping: true})

		ret, err := f.service.CreateReturn(ctx, domain.CreateReturnRequest{
			OrderID: "order-1",
			Items: []domain.ItemRequest{
				{OrderItemID: "line-1", Quantity: 1},
				{OrderItemID: "line-2", Quantity: 1},
				{OrderItemID: "line-2", Quantity: 1},
			},
			Reason: domain.ReasonWrongItem,
		})
		require.NoError(t, err)
		require.Len(t, ret.Items, 2)
		assert.Equal(t, 2, ret.Items[1].Quantity)
		assert.Equal(t, "45.95", ret.RefundAmount.StringFixed(2))
	})

	t.Run("invalid requests", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())

		tests := []domain.CreateReturnRequest{
			{Items: []domain.ItemRequest{{OrderItemID: "line-1", Quantity: 1}}, Reason: domain.ReasonOther},
			{OrderID: "order-1", Reason: domain.ReasonOther},
			{OrderID: "order-1", Items: []domain.ItemRequest{{OrderItemID: "line-1", Quantity: 0}}, Reason: domain.ReasonOther},
			{OrderID: "order-1", Items: []domain.ItemRequest{{OrderItemID: "line-1", Quantity: 1}}, Reason: "BORED"},
		}
		for _, req := range tests {
			_, err := f.service.CreateReturn(ctx, req)
			assert.ErrorIs(t, err, domain.ErrInvalidReturn)
		}

		_, err := f.service.CreateReturn(ctx, domain.CreateReturnRequest{
			OrderID: "missing",
			Items:   []domain.ItemRequest{{OrderItemID: "line-1", Quantity: 1}},
			Reason:  domain.ReasonOther,
		})
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	})
}

func TestReturnService_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("processor success marks refunded", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 2)
		f.advance(t, ret.ID, toRefundPending...)

		f.refunder.On("Refund", mock.Anything, "ch_123", mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(20))
		}), ret.ID).Return("re_789", nil).Once()

		refunded, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{Actor: "staff"})
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusRefunded, refunded.Status)
		assert.Equal(t, "re_789", refunded.RefundReference)
		assert.NotNil(t, refunded.RefundedAt)

		f.refunder.AssertExpectations(t)
		f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
			payload, ok := e.Payload.(ReturnStatusChangedPayload)
			return ok && payload.To == domain.ReturnStatusRefunded && payload.RefundReference == "re_789"
		}))

		_, err = f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		f.refunder.AssertNumberOfCalls(t, "Refund", 1)
	})

	t.Run("processor failure stays refund pending", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 2)
		f.advance(t, ret.ID, toRefundPending...)

		f.refunder.On("Refund", mock.Anything, "ch_123", mock.Anything, ret.ID).Return("", errors.New("card_declined")).Once()

		_, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		assert.ErrorIs(t, err, domain.ErrRefundFailed)
		var refundErr *domain.RefundError
		require.ErrorAs(t, err, &refundErr)
		assert.Equal(t, 1, refundErr.Attempt)

		stored, err := f.service.GetReturn(ctx, ret.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusRefundPending, stored.Status)
		assert.Empty(t, stored.RefundReference)
		assert.Equal(t, "card_declined", stored.LastRefundError)

		f.refunder.On("Refund", mock.Anything, "ch_123", mock.Anything, ret.ID).Return("re_retry", nil).Once()
		refunded, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		require.NoError(t, err)
		assert.Equal(t, 2, refunded.RefundAttempts)
		assert.Equal(t, "re_retry", refunded.RefundReference)
	})

	t.Run("cancel during the processor call is rejected", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 2)
		f.advance(t, ret.ID, toRefundPending...)

		var cancelErr error
		f.refunder.On("Refund", mock.Anything, "ch_123", mock.Anything, ret.ID).
			Run(func(args mock.Arguments) {
				_, cancelErr = f.service.Transition(ctx, ret.ID, domain.ReturnStatusCancelled, domain.TransitionMetadata{Actor: "staff"})
			}).
			Return("re_789", nil).Once()

		refunded, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{Actor: "staff"})
		require.NoError(t, err)
		assert.ErrorIs(t, cancelErr, domain.ErrRefundInProgress)
		assert.ErrorIs(t, cancelErr, domain.ErrInvalidTransition)

		stored, err := f.service.GetReturn(ctx, ret.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusRefunded, stored.Status)
		assert.Equal(t, "re_789", stored.RefundReference)
		assert.Equal(t, refunded.RefundReference, stored.RefundReference)
		assert.False(t, stored.RefundInFlight())

		_, err = f.service.CreateReturn(ctx, domain.CreateReturnRequest{
			OrderID: "order-1",
			Items:   []domain.ItemRequest{{OrderItemID: "line-2", Quantity: 2}},
			Reason:  domain.ReasonChangedMind,
		})
		assert.ErrorIs(t, err, domain.ErrNotReturnable)
		f.refunder.AssertNumberOfCalls(t, "Refund", 1)
	})

	t.Run("cancel is allowed once a refund attempt failed", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 2)
		f.advance(t, ret.ID, toRefundPending...)

		f.refunder.On("Refund", mock.Anything, "ch_123", mock.Anything, ret.ID).Return("", errors.New("processor down")).Once()
		_, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		assert.ErrorIs(t, err, domain.ErrRefundFailed)

		cancelled, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusCancelled, domain.TransitionMetadata{Actor: "staff"})
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnStatusCancelled, cancelled.Status)
	})

	t.Run("refund requires refund pending", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 1)

		_, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		f.refunder.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lowered amount is what gets refunded", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		ret := f.open(t, 2)
		f.advance(t, ret.ID, toRefundPending[:3]...)

		lowered := decimal.RequireFromString("12.50")
		_, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefundPending, domain.TransitionMetadata{RefundAmount: &lowered})
		require.NoError(t, err)

		f.refunder.On("Refund", mock.Anything, "ch_123", mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(lowered)
		}), ret.ID).Return("re_partial", nil).Once()

		refunded, err := f.service.Transition(ctx, ret.ID, domain.ReturnStatusRefunded, domain.TransitionMetadata{})
		require.NoError(t, err)
		assert.Equal(t, "12.50", refunded.RefundAmount.StringFixed(2))
		f.refunder.AssertExpectations(t)
	})
}

func TestReturnService_InspectionAndRestock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())
	ret := f.open(t, 2)
	f.advance(t, ret.ID, domain.ReturnStatusApproved, domain.ReturnStatusReceived)

	inspected, err := f.service.RecordInspection(ctx, ret.ID, []domain.Inspection{
		{ItemID: ret.Items[0].ID, Condition: "unopened", Restockable: true},
	})
	require.NoError(t, err)
	assert.True(t, inspected.Items[0].Restockable)

	_, err = f.service.RecordInspection(ctx, ret.ID, []domain.Inspection{{ItemID: "unknown"}})
	assert.ErrorIs(t, err, domain.ErrReturnItemNotFound)

	_, err = f.service.RecordInspection(ctx, ret.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidReturn)

	f.advance(t, ret.ID, domain.ReturnStatusInspecting, domain.ReturnStatusRefundPending)

	f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		payload, ok := e.Payload.(RestockPayload)
		return ok && e.Type == events.ReturnRestockRequested && len(payload.Items) == 1 && payload.Items[0].Condition == "unopened"
	}))
}

func TestReturnService_RestockOnCancelFromInspecting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())
	ret := f.open(t, 2)
	f.advance(t, ret.ID, domain.ReturnStatusApproved, domain.ReturnStatusReceived, domain.ReturnStatusInspecting)

	_, err := f.service.RecordInspection(ctx, ret.ID, []domain.Inspection{
		{ItemID: ret.Items[0].ID, Condition: "unopened", Restockable: true},
	})
	require.NoError(t, err)

	f.advance(t, ret.ID, domain.ReturnStatusCancelled)

	f.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		payload, ok := e.Payload.(RestockPayload)
		return ok && e.Type == events.ReturnRestockRequested && payload.ReturnID == ret.ID && len(payload.Items) == 1
	}))
}
