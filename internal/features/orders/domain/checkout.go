package domain

import (
	carriers "fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
)

// LineInput is one cart line submitted at checkout.
type LineInput struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	SKU       string          `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PlaceOrderRequest is the completed checkout handed to the engine.
type PlaceOrderRequest struct {
	Customer        Customer         `json:"customer"`
	ShippingAddress carriers.Address `json:"shipping_address"`
	Items           []LineInput      `json:"items"`
	ShippingMethod  string           `json:"shipping_method,omitempty"`
	// Shipping and Tax are quoted by checkout.
	Shipping     decimal.Decimal `json:"shipping"`
	Tax          decimal.Decimal `json:"tax"`
	DiscountCode string          `json:"discount_code,omitempty"`
	// PaymentSource is the tokenized card or wallet to charge.
	PaymentSource string `json:"payment_source"`
}
