package domain

import (
	"fmt"
	"time"

	orders "fulfillment-engine/internal/features/orders/domain"

	"github.com/shopspring/decimal"
)

// ItemRequest asks to return quantity units of one order line.
type ItemRequest struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
}

// CreateReturnRequest opens a return against an order.
type CreateReturnRequest struct {
	OrderID       string        `json:"order_id"`
	Items         []ItemRequest `json:"items"`
	Reason        ReturnReason  `json:"reason"`
	ReasonDetails string        `json:"reason_details,omitempty"`
	Actor         string        `json:"actor,omitempty"`
}

// Policy holds the return window and the refund composition rules.
type Policy struct {
	// Window is measured from the order's delivery.
	Window time.Duration
	// IncludeTax adds tax proportional to the returned share of the subtotal.
	IncludeTax bool
	// IncludeShipping adds the shipping charge once the order is fully returned.
	IncludeShipping bool
}

// ReturnedQuantities sums the quantities held per order line by returns that
// are neither cancelled nor rejected.
func ReturnedQuantities(existing []Return) map[string]int {
	held := make(map[string]int)
	for _, ret := range existing {
		if !ret.HoldsQuantity() {
			continue
		}
		for _, item := range ret.Items {
			held[item.OrderItemID] += item.Quantity
		}
	}
	return held
}

// CheckEligibility validates that the order is delivered within the window and
// that no requested line exceeds its remaining returnable quantity.
// Requests naming the same line twice are summed.
func (p Policy) CheckEligibility(order *orders.Order, requested []ItemRequest, existing []Return, now time.Time) error {
	if order.Status != orders.OrderStatusDelivered || order.DeliveredAt == nil {
		return &NotReturnableError{OrderID: order.ID, Reason: fmt.Sprintf("order is %s, only delivered orders can be returned", order.Status)}
	}
	if p.Window > 0 && now.After(order.DeliveredAt.Add(p.Window)) {
		return &NotReturnableError{
			OrderID: order.ID,
			Reason:  fmt.Sprintf("return window closed on %s", order.DeliveredAt.Add(p.Window).Format(time.DateOnly)),
		}
	}

	wanted := make(map[string]int)
	for _, req := range requested {
		wanted[req.OrderItemID] += req.Quantity
	}

	held := ReturnedQuantities(existing)
	for _, req := range requested {
		line, ok := order.Item(req.OrderItemID)
		if !ok {
			return &NotReturnableError{OrderID: order.ID, OrderItemID: req.OrderItemID, Reason: "not part of the order"}
		}
		remaining := line.Quantity - held[line.ID]
		if wanted[line.ID] > remaining {
			return &NotReturnableError{
				OrderID:     order.ID,
				OrderItemID: line.ID,
				Reason:      fmt.Sprintf("requested %d but only %d of %d remain returnable", wanted[line.ID], remaining, line.Quantity),
			}
		}
	}
	return nil
}

// RefundAmount computes the provisional refund of items.
// fullyReturned tells whether these items complete the return of every unit of the order.
func (p Policy) RefundAmount(order *orders.Order, items []ReturnItem, fullyReturned bool) decimal.Decimal {
	amount := decimal.Zero
	for _, item := range items {
		amount = amount.Add(item.LineTotal())
	}

	if p.IncludeTax && order.Subtotal.IsPositive() && order.Tax.IsPositive() {
		share := amount.Div(order.Subtotal)
		amount = amount.Add(order.Tax.Mul(share).Round(2))
	}
	if p.IncludeShipping && fullyReturned {
		amount = amount.Add(order.Shipping)
	}
	return amount.Round(2)
}

// FullyReturned reports whether items, together with the quantities already
// held by other returns, cover every unit of the order.
func FullyReturned(order *orders.Order, items []ReturnItem, existing []Return) bool {
	held := ReturnedQuantities(existing)
	for _, item := range items {
		held[item.OrderItemID] += item.Quantity
	}
	for _, line := range order.Items {
		if held[line.ID] < line.Quantity {
			return false
		}
	}
	return true
}
