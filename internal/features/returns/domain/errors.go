package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrReturnNotFound is returned when a return id is unknown.
	ErrReturnNotFound = errors.New("return not found")
	// ErrReturnItemNotFound is returned when an inspection names an unknown item.
	ErrReturnItemNotFound = errors.New("return item not found")
	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid return transition")
	// ErrNotReturnable is returned when the order or the requested items do not qualify.
	ErrNotReturnable = errors.New("not returnable")
	// ErrRefundFailed is returned when the payment processor declines or errors.
	// The return stays in REFUND_PENDING.
	ErrRefundFailed = errors.New("refund failed")
	// ErrRefundInProgress is returned when a return is cancelled while its refund is being paid.
	ErrRefundInProgress = errors.New("refund in progress")
	// ErrInvalidRefundAmount is returned for a non-positive or raised refund amount.
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
	// ErrInspectionNotAllowed is returned when items are inspected outside RECEIVED/INSPECTING.
	ErrInspectionNotAllowed = errors.New("inspection not allowed")
	// ErrUnknownStatus is returned for unparseable status strings.
	ErrUnknownStatus = errors.New("unknown return status")
	// ErrUnknownReason is returned for unparseable reason strings.
	ErrUnknownReason = errors.New("unknown return reason")
	// ErrConcurrentModification is returned when another write to the same order's returns won the race.
	ErrConcurrentModification = errors.New("return modified concurrently")
	// ErrInvalidReturn is returned for malformed create requests.
	ErrInvalidReturn = errors.New("invalid return request")
)

// TransitionError describes a rejected return status change.
type TransitionError struct {
	ReturnID string
	From     ReturnStatus
	To       ReturnStatus
	Reason   string
	// Err is an optional more specific cause.
	Err error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition for return %s (%s -> %s): %s", e.ReturnID, e.From, e.To, e.Reason)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Unwrap returns the specific cause, if any.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

// NotReturnableError explains why a return cannot be opened.
type NotReturnableError struct {
	OrderID string
	// OrderItemID is set when a specific line is the problem.
	OrderItemID string
	Reason      string
}

// Error implements the error interface.
func (e *NotReturnableError) Error() string {
	if e.OrderItemID != "" {
		return fmt.Sprintf("order %s line %s is not returnable: %s", e.OrderID, e.OrderItemID, e.Reason)
	}
	return fmt.Sprintf("order %s is not returnable: %s", e.OrderID, e.Reason)
}

// Is matches ErrNotReturnable.
func (e *NotReturnableError) Is(target error) bool {
	return target == ErrNotReturnable
}

// RefundError wraps a payment processor failure.
type RefundError struct {
	ReturnID string
	Attempt  int
	Err      error
}

// Error implements the error interface.
func (e *RefundError) Error() string {
	return fmt.Sprintf("refund of return %s failed (attempt %d): %v", e.ReturnID, e.Attempt, e.Err)
}

// Unwrap exposes ErrRefundFailed and the processor error.
func (e *RefundError) Unwrap() []error {
	return []error{ErrRefundFailed, e.Err}
}
