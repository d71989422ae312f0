package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRateUnavailable is returned when a carrier cannot price the shipment.
	ErrRateUnavailable = errors.New("rate unavailable")
	// ErrAddressInvalid is returned when a carrier rejects an address.
	ErrAddressInvalid = errors.New("address invalid")
	// ErrCarrierUnavailable is a transient failure (timeout, 5xx, throttling). Retryable.
	ErrCarrierUnavailable = errors.New("carrier unavailable")
	// ErrLabelPurchaseFailed is returned when a carrier refuses to issue a label.
	ErrLabelPurchaseFailed = errors.New("label purchase failed")
	// ErrShipmentNotFound is returned when a carrier does not know a tracking number.
	ErrShipmentNotFound = errors.New("shipment not found")
	// ErrCarrierNotSupported is returned when no gateway serves the requested carrier.
	ErrCarrierNotSupported = errors.New("carrier not supported")
	// ErrInvalidRateID is returned for rate ids without a carrier prefix.
	ErrInvalidRateID = errors.New("invalid rate id")
)

// CarrierError carries the carrier's own error details alongside the shared classification.
type CarrierError struct {
	Carrier   string
	Operation string
	// Kind is one of the shared sentinel errors.
	Kind error
	// Code and Message are what the carrier reported, if anything.
	Code    string
	Message string
	// Err is the underlying transport or decoding error.
	Err error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Carrier, e.Operation, e.Kind)
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

// Unwrap exposes both the classification and the cause to errors.Is / errors.As.
func (e *CarrierError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the caller may retry the same request.
func (e *CarrierError) Retryable() bool {
	return errors.Is(e.Kind, ErrCarrierUnavailable)
}

// IsRetryable reports whether err is a transient carrier failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCarrierUnavailable)
}
