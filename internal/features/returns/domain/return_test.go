package domain

import (
	"errors"
	"testing"
	"time"

	orders "fulfillment-engine/internal/features/orders/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func deliveredOrder() *orders.Order {
	delivered := now.Add(-48 * time.Hour)
	return &orders.Order{
		ID:     "order-1",
		Status: orders.OrderStatusDelivered,
		Items: []orders.OrderItem{
			{ID: "line-1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
			{ID: "line-2", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		},
		Subtotal:    decimal.NewFromInt(40),
		Shipping:    decimal.RequireFromString("5.95"),
		Tax:         decimal.RequireFromString("3.30"),
		DeliveredAt: &delivered,
	}
}

func returnOf(status ReturnStatus, items ...ReturnItem) Return {
	return Return{ID: "ret-" + string(status), Status: status, Items: items}
}

func TestParseReturnStatus(t *testing.T) {
	status, err := ParseReturnStatus(" refund_pending ")
	require.NoError(t, err)
	assert.Equal(t, ReturnStatusRefundPending, status)

	status, err = ParseReturnStatus("REFUNDED")
	require.NoError(t, err)
	assert.Equal(t, ReturnStatusRefunded, status)

	_, err = ParseReturnStatus("LOST")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestParseReturnReason(t *testing.T) {
	reason, err := ParseReturnReason("size_issue")
	require.NoError(t, err)
	assert.Equal(t, ReasonSizeIssue, reason)

	_, err = ParseReturnReason("BORED")
	assert.ErrorIs(t, err, ErrUnknownReason)
}

func TestReturn_Transition(t *testing.T) {
	t.Run("follows the linear path", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusPending, RefundAmount: decimal.NewFromInt(20)}
		path := []ReturnStatus{ReturnStatusApproved, ReturnStatusReceived, ReturnStatusInspecting, ReturnStatusRefundPending}
		for _, target := range path {
			require.NoError(t, ret.Transition(target, TransitionMetadata{Actor: "staff"}, now))
		}
		assert.Equal(t, ReturnStatusRefundPending, ret.Status)
		assert.Equal(t, "staff", ret.ApprovedBy)
		assert.NotNil(t, ret.ApprovedAt)
		assert.NotNil(t, ret.ReceivedAt)
		assert.NotNil(t, ret.InspectedAt)
		assert.Equal(t, int64(4), ret.Version)
	})

	t.Run("rejects skipping and going backwards", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusApproved}
		err := ret.Transition(ReturnStatusInspecting, TransitionMetadata{}, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		err = ret.Transition(ReturnStatusPending, TransitionMetadata{}, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, ReturnStatusApproved, ret.Status)
		assert.Zero(t, ret.Version)
	})

	t.Run("rejection only from pending", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusPending}
		require.NoError(t, ret.Transition(ReturnStatusRejected, TransitionMetadata{RejectionReason: "worn"}, now))
		assert.Equal(t, "worn", ret.RejectionReason)
		assert.NotNil(t, ret.RejectedAt)

		approved := &Return{ID: "r2", Status: ReturnStatusApproved}
		assert.ErrorIs(t, approved.Transition(ReturnStatusRejected, TransitionMetadata{}, now), ErrInvalidTransition)
	})

	t.Run("cancel from any state before refund", func(t *testing.T) {
		for _, from := range []ReturnStatus{ReturnStatusPending, ReturnStatusApproved, ReturnStatusReceived, ReturnStatusInspecting, ReturnStatusRefundPending} {
			ret := &Return{ID: "r1", Status: from}
			require.NoError(t, ret.Transition(ReturnStatusCancelled, TransitionMetadata{}, now), from)
			assert.NotNil(t, ret.CancelledAt)
		}
		for _, from := range []ReturnStatus{ReturnStatusRefunded, ReturnStatusRejected, ReturnStatusCancelled} {
			ret := &Return{ID: "r1", Status: from}
			err := ret.Transition(ReturnStatusCancelled, TransitionMetadata{}, now)
			assert.ErrorIs(t, err, ErrInvalidTransition, from)
			assert.Contains(t, err.Error(), "can no longer change")
		}
	})

	t.Run("refunded only through the processor", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusRefundPending}
		assert.ErrorIs(t, ret.Transition(ReturnStatusRefunded, TransitionMetadata{}, now), ErrInvalidTransition)
	})

	t.Run("refund amount may be lowered not raised", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusInspecting, RefundAmount: decimal.NewFromInt(20)}

		raised := decimal.NewFromInt(25)
		err := ret.Transition(ReturnStatusRefundPending, TransitionMetadata{RefundAmount: &raised}, now)
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		zero := decimal.Zero
		err = ret.Transition(ReturnStatusRefundPending, TransitionMetadata{RefundAmount: &zero}, now)
		assert.ErrorIs(t, err, ErrInvalidRefundAmount)

		lowered := decimal.RequireFromString("15.50")
		require.NoError(t, ret.Transition(ReturnStatusRefundPending, TransitionMetadata{RefundAmount: &lowered, RefundMethod: "original"}, now))
		assert.True(t, ret.RefundAmount.Equal(lowered))
		assert.Equal(t, "original", ret.RefundMethod)
	})
}

func TestReturn_Refund(t *testing.T) {
	ret := &Return{ID: "r1", Status: ReturnStatusRefundPending}

	ret.RecordRefundFailure(errors.New("processor down"), now)
	assert.Equal(t, ReturnStatusRefundPending, ret.Status)
	assert.Equal(t, 1, ret.RefundAttempts)
	assert.Equal(t, "processor down", ret.LastRefundError)

	require.NoError(t, ret.MarkRefunded("re_123", now))
	assert.Equal(t, ReturnStatusRefunded, ret.Status)
	assert.Equal(t, "re_123", ret.RefundReference)
	assert.Equal(t, 2, ret.RefundAttempts)
	assert.Empty(t, ret.LastRefundError)
	assert.NotNil(t, ret.RefundedAt)

	assert.ErrorIs(t, ret.MarkRefunded("re_456", now), ErrInvalidTransition)
}

func TestReturn_BeginRefund(t *testing.T) {
	t.Run("blocks cancellation until the refund settles", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusRefundPending}
		require.NoError(t, ret.BeginRefund(now))
		assert.True(t, ret.RefundInFlight())

		err := ret.Transition(ReturnStatusCancelled, TransitionMetadata{}, now)
		assert.ErrorIs(t, err, ErrRefundInProgress)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, ReturnStatusRefundPending, ret.Status)

		require.NoError(t, ret.BeginRefund(now), "an in-flight refund may be retried")

		ret.RecordRefundFailure(errors.New("timeout"), now)
		assert.False(t, ret.RefundInFlight())
		require.NoError(t, ret.Transition(ReturnStatusCancelled, TransitionMetadata{}, now))
	})

	t.Run("success clears the claim", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusRefundPending}
		require.NoError(t, ret.BeginRefund(now))
		require.NoError(t, ret.MarkRefunded("re_1", now))
		assert.False(t, ret.RefundInFlight())
	})

	t.Run("requires refund pending", func(t *testing.T) {
		ret := &Return{ID: "r1", Status: ReturnStatusInspecting}
		assert.ErrorIs(t, ret.BeginRefund(now), ErrInvalidTransition)
		assert.False(t, ret.RefundInFlight())
	})
}

func TestReturn_RecordInspection(t *testing.T) {
	ret := &Return{
		ID:     "r1",
		Status: ReturnStatusPending,
		Items:  []ReturnItem{{ID: "item-1"}, {ID: "item-2"}},
	}
	assert.ErrorIs(t, ret.RecordInspection("item-1", "unopened", true, now), ErrInspectionNotAllowed)

	ret.Status = ReturnStatusReceived
	require.NoError(t, ret.RecordInspection("item-1", " unopened ", true, now))
	assert.Equal(t, "unopened", ret.Items[0].Condition)
	assert.True(t, ret.Items[0].Restockable)
	assert.NotNil(t, ret.Items[0].InspectedAt)

	assert.ErrorIs(t, ret.RecordInspection("item-9", "damaged", false, now), ErrReturnItemNotFound)
	assert.Len(t, ret.RestockableItems(), 1)
}

func TestPolicy_CheckEligibility(t *testing.T) {
	policy := Policy{Window: 30 * 24 * time.Hour}

	t.Run("delivered order within window", func(t *testing.T) {
		err := policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-2", Quantity: 2}}, nil, now)
		assert.NoError(t, err)
	})

	t.Run("undelivered order", func(t *testing.T) {
		order := deliveredOrder()
		order.Status = orders.OrderStatusShipped
		order.DeliveredAt = nil
		err := policy.CheckEligibility(order, []ItemRequest{{OrderItemID: "line-1", Quantity: 1}}, nil, now)
		assert.ErrorIs(t, err, ErrNotReturnable)
	})

	t.Run("window closed", func(t *testing.T) {
		err := policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-1", Quantity: 1}}, nil, now.Add(31*24*time.Hour))
		assert.ErrorIs(t, err, ErrNotReturnable)
		assert.Contains(t, err.Error(), "window closed")
	})

	t.Run("unknown line", func(t *testing.T) {
		err := policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-9", Quantity: 1}}, nil, now)
		var notReturnable *NotReturnableError
		require.ErrorAs(t, err, &notReturnable)
		assert.Equal(t, "line-9", notReturnable.OrderItemID)
	})

	t.Run("quantity held by open returns", func(t *testing.T) {
		existing := []Return{returnOf(ReturnStatusApproved, ReturnItem{OrderItemID: "line-2", Quantity: 1})}
		assert.NoError(t, policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-2", Quantity: 1}}, existing, now))
		assert.ErrorIs(t, policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-2", Quantity: 2}}, existing, now), ErrNotReturnable)
	})

	t.Run("cancelled and rejected returns release quantity", func(t *testing.T) {
		existing := []Return{
			returnOf(ReturnStatusCancelled, ReturnItem{OrderItemID: "line-2", Quantity: 2}),
			returnOf(ReturnStatusRejected, ReturnItem{OrderItemID: "line-2", Quantity: 2}),
		}
		assert.NoError(t, policy.CheckEligibility(deliveredOrder(), []ItemRequest{{OrderItemID: "line-2", Quantity: 2}}, existing, now))
	})

	t.Run("duplicate lines are summed", func(t *testing.T) {
		requested := []ItemRequest{{OrderItemID: "line-2", Quantity: 2}, {OrderItemID: "line-2", Quantity: 1}}
		assert.ErrorIs(t, policy.CheckEligibility(deliveredOrder(), requested, nil, now), ErrNotReturnable)
	})
}

func TestPolicy_RefundAmount(t *testing.T) {
	order := deliveredOrder()
	partial := []ReturnItem{{OrderItemID: "line-2", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}}
	full := append([]ReturnItem{{OrderItemID: "line-1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}}, partial...)

	tests := []struct {
		name     string
		policy   Policy
		items    []ReturnItem
		expected string
	}{
		{name: "items only", policy: Policy{}, items: partial, expected: "20"},
		{name: "proportional tax", policy: Policy{IncludeTax: true}, items: partial, expected: "21.65"},
		{name: "shipping needs a full return", policy: Policy{IncludeShipping: true}, items: partial, expected: "20"},
		{name: "full return with shipping and tax", policy: Policy{IncludeTax: true, IncludeShipping: true}, items: full, expected: "49.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := tt.policy.RefundAmount(order, tt.items, FullyReturned(order, tt.items, nil))
			assert.Equal(t, tt.expected, amount.String())
		})
	}
}

func TestFullyReturned(t *testing.T) {
	order := deliveredOrder()
	existing := []Return{returnOf(ReturnStatusRefunded, ReturnItem{OrderItemID: "line-1", Quantity: 1})}
	items := []ReturnItem{{OrderItemID: "line-2", Quantity: 2}}

	assert.True(t, FullyReturned(order, items, existing))
	assert.False(t, FullyReturned(order, items, nil))
}
