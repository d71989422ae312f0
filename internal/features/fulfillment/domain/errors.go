package domain

import "fmt"

// Code classifies every error surfaced to callers of the fulfillment engine.
type Code string

const (
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeNotReturnable       Code = "NOT_RETURNABLE"
	CodeLabelAlreadyExists  Code = "LABEL_ALREADY_EXISTS"
	CodeRateUnavailable     Code = "RATE_UNAVAILABLE"
	CodeNoRatesAvailable    Code = "NO_RATES_AVAILABLE"
	CodeAddressInvalid      Code = "ADDRESS_INVALID"
	CodeCarrierUnavailable  Code = "CARRIER_UNAVAILABLE"
	CodeLabelPurchaseFailed Code = "LABEL_PURCHASE_FAILED"
	CodeTrackingUnavailable Code = "TRACKING_UNAVAILABLE"
	CodeRefundFailed        Code = "REFUND_FAILED"
	CodePaymentFailed       Code = "PAYMENT_FAILED"
	CodeDiscountRejected    Code = "DISCOUNT_REJECTED"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeInternal            Code = "INTERNAL"
)

// Error is the single caller-facing error type of the orchestrator.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	// Retryable tells the caller the same request may succeed later.
	Retryable bool `json:"retryable"`
	// Err is the component error behind the classification.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the component error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ItemFailure is one failed entry of a bulk operation.
type ItemFailure struct {
	OrderID string `json:"order_id"`
	Code    Code   `json:"code"`
	Reason  string `json:"reason"`
}

// BulkOutcome reports the independent per-order results of a bulk status change.
type BulkOutcome struct {
	UpdatedCount int           `json:"updated_count"`
	FailedCount  int           `json:"failed_count"`
	Updated      []string      `json:"updated"`
	Failures     []ItemFailure `json:"failures"`
}
