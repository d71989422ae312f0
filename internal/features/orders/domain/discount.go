package domain

import (
	"github.com/shopspring/decimal"
)

// DiscountType is how a discount code reduces the order.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeShipping DiscountType = "free_shipping"
	DiscountBuyXGetY     DiscountType = "buy_x_get_y"
)

// DiscountApplication is the discount validator's verdict for a code.
type DiscountApplication struct {
	Code        string          `json:"code"`
	Type        DiscountType    `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
	// Amount is the validator-computed reduction for buy-x-get-y offers.
	Amount decimal.Decimal `json:"amount"`
}

// AmountFor returns the reduction for the given subtotal and shipping, never
// more than what it applies to.
func (d DiscountApplication) AmountFor(subtotal, shipping decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		amount = d.Value
	case DiscountFreeShipping:
		return shipping
	case DiscountBuyXGetY:
		amount = d.Amount
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}
