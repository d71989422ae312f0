package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPaymentDeclined is returned when the processor refuses the charge or refund.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrPaymentUnavailable is a transient processor failure (timeout, 5xx). Retryable.
	ErrPaymentUnavailable = errors.New("payment processor unavailable")
)

// PaymentError carries the processor's error details alongside the classification.
type PaymentError struct {
	Operation string
	// Kind is ErrPaymentDeclined or ErrPaymentUnavailable.
	Kind    error
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	msg := fmt.Sprintf("payment %s: %v", e.Operation, e.Kind)
	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the classification and the cause.
func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether err is a transient processor failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPaymentUnavailable)
}
