package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLabelAlreadyExists is returned when the order already has an active label
	// or another purchase for it is in flight.
	ErrLabelAlreadyExists = errors.New("label already exists")
	// ErrNoRatesAvailable is returned when no carrier produced a usable rate.
	ErrNoRatesAvailable = errors.New("no rates available")
	// ErrLabelNotFound is returned when the order has no active label.
	ErrLabelNotFound = errors.New("label not found")
	// ErrReservationLost is returned when the purchase reservation expired before commit.
	ErrReservationLost = errors.New("label reservation lost")
)

// NoRatesError aggregates the carrier failures behind ErrNoRatesAvailable.
type NoRatesError struct {
	OrderID  string
	Failures []CarrierFailure
	// Errs are the original carrier errors in provider order.
	Errs []error
}

// Error implements the error interface.
func (e *NoRatesError) Error() string {
	return fmt.Sprintf("no rates available for order %s from %d carriers", e.OrderID, len(e.Failures))
}

// Unwrap matches ErrNoRatesAvailable and every carrier error.
func (e *NoRatesError) Unwrap() []error {
	return append([]error{ErrNoRatesAvailable}, e.Errs...)
}
