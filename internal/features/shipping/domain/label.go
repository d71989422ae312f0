package domain

import (
	"time"

	carriers "fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
)

// LabelStatus is the lifecycle of a shipping label.
type LabelStatus string

const (
	// LabelStatusCreated marks the active label of an order.
	LabelStatusCreated LabelStatus = "created"
	// LabelStatusVoided marks a label cancelled before shipping.
	LabelStatusVoided LabelStatus = "voided"
)

// ShippingLabel is a purchased carrier label. An order has at most one active label.
type ShippingLabel struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Carrier     string `json:"carrier"`
	RateID      string `json:"rate_id"`
	ServiceCode string `json:"service_code"`
	ServiceName string `json:"service_name"`
	// TrackingNumber is issued by the carrier.
	TrackingNumber string          `json:"tracking_number"`
	Cost           decimal.Decimal `json:"cost"`
	Currency       string          `json:"currency"`
	// LabelURL is an opaque reference to the label document.
	LabelURL   string      `json:"label_url"`
	CarrierRef string      `json:"carrier_ref,omitempty"`
	Status     LabelStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	VoidedAt   *time.Time  `json:"voided_at,omitempty"`
}

// IsActive reports whether the label still holds the order's label slot.
func (l ShippingLabel) IsActive() bool {
	return l.Status == LabelStatusCreated
}

// Carrier failure codes.
const (
	FailureCarrierUnavailable = "CARRIER_UNAVAILABLE"
	FailureAddressInvalid     = "ADDRESS_INVALID"
	FailureRateUnavailable    = "RATE_UNAVAILABLE"
)

// CarrierFailure explains why a carrier is missing from a quote.
type CarrierFailure struct {
	Carrier   string `json:"carrier"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// RateQuote is the merged result of shopping every configured carrier.
type RateQuote struct {
	OrderID string          `json:"order_id"`
	Rates   []carriers.Rate `json:"rates"`
	// Unavailable lists carriers whose rates were omitted.
	Unavailable []CarrierFailure `json:"unavailable,omitempty"`
	QuotedAt    time.Time        `json:"quoted_at"`
}
