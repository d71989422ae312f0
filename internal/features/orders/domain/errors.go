package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned when no order exists with the given id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for status changes that are not legal from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrTrackingRequired is returned when shipping without carrier and tracking number.
	ErrTrackingRequired = errors.New("tracking required")
	// ErrConcurrentModification is returned when the order changed between read and write.
	ErrConcurrentModification = errors.New("order was modified concurrently")
	// ErrUnknownStatus is returned when parsing an unknown status name.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrNotShippable is returned when a label operation hits an order past PROCESSING.
	ErrNotShippable = errors.New("order is not shippable")
	// ErrInvalidOrder is returned when checkout input is incomplete or inconsistent.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrDiscountRejected is returned when the discount validator refuses a code.
	ErrDiscountRejected = errors.New("discount rejected")
	// ErrPaymentFailed is returned when the payment capture fails at checkout.
	ErrPaymentFailed = errors.New("payment failed")
)

// TransitionError describes a rejected status change. It matches ErrInvalidTransition.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
	Reason  string
	// Err is an optional more specific cause.
	Err error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for order %s (%s -> %s): %s", e.OrderID, e.From, e.To, e.Reason)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Unwrap returns the specific cause, if any.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// DiscountRejectedError carries the validator's rejection reason.
type DiscountRejectedError struct {
	Code   string
	Reason string
}

// Error implements the error interface.
func (e *DiscountRejectedError) Error() string {
	return fmt.Sprintf("discount code %q rejected: %s", e.Code, e.Reason)
}

// Is matches ErrDiscountRejected.
func (e *DiscountRejectedError) Is(target error) bool {
	return target == ErrDiscountRejected
}
