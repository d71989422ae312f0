package service

import (
	"context"
	"errors"

	carriers "fulfillment-engine/internal/features/carriers/domain"
	"fulfillment-engine/internal/features/fulfillment/domain"
	orders "fulfillment-engine/internal/features/orders/domain"
	payments "fulfillment-engine/internal/features/payments/domain"
	returns "fulfillment-engine/internal/features/returns/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"
)

// Translate maps a component error onto the caller-facing taxonomy.
// Composite errors are inspected before the carrier sentinels they wrap.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var fe *domain.Error
	if errors.As(err, &fe) {
		return fe
	}

	classify := func(code domain.Code, retryable bool) error {
		return &domain.Error{Code: code, Message: err.Error(), Retryable: retryable, Err: err}
	}

	var noRates *shipping.NoRatesError
	if errors.As(err, &noRates) {
		return translateNoRates(noRates, err)
	}

	switch {
	case errors.Is(err, orders.ErrConcurrentModification),
		errors.Is(err, returns.ErrConcurrentModification),
		errors.Is(err, shipping.ErrReservationLost):
		return classify(domain.CodeConflict, true)

	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, returns.ErrReturnNotFound),
		errors.Is(err, returns.ErrReturnItemNotFound),
		errors.Is(err, shipping.ErrLabelNotFound):
		return classify(domain.CodeNotFound, false)

	case errors.Is(err, orders.ErrUnknownStatus),
		errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, returns.ErrUnknownStatus),
		errors.Is(err, returns.ErrUnknownReason),
		errors.Is(err, returns.ErrInvalidReturn),
		errors.Is(err, carriers.ErrInvalidRateID):
		return classify(domain.CodeInvalidRequest, false)

	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, returns.ErrInvalidTransition),
		errors.Is(err, returns.ErrInspectionNotAllowed),
		errors.Is(err, orders.ErrNotShippable):
		return classify(domain.CodeInvalidTransition, false)

	case errors.Is(err, returns.ErrNotReturnable):
		return classify(domain.CodeNotReturnable, false)

	case errors.Is(err, shipping.ErrLabelAlreadyExists):
		return classify(domain.CodeLabelAlreadyExists, false)

	case errors.Is(err, returns.ErrRefundFailed):
		return classify(domain.CodeRefundFailed, true)

	case errors.Is(err, orders.ErrPaymentFailed):
		return classify(domain.CodePaymentFailed, payments.IsRetryable(err))

	case errors.Is(err, orders.ErrDiscountRejected):
		return classify(domain.CodeDiscountRejected, false)

	case errors.Is(err, tracking.ErrNoTrackingInfo):
		return classify(domain.CodeTrackingUnavailable, false)

	case errors.Is(err, carriers.ErrCarrierUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return classify(domain.CodeCarrierUnavailable, true)

	case errors.Is(err, carriers.ErrAddressInvalid):
		return classify(domain.CodeAddressInvalid, false)

	case errors.Is(err, carriers.ErrLabelPurchaseFailed):
		return classify(domain.CodeLabelPurchaseFailed, false)

	case errors.Is(err, carriers.ErrRateUnavailable),
		errors.Is(err, carriers.ErrCarrierNotSupported):
		return classify(domain.CodeRateUnavailable, false)

	case errors.Is(err, carriers.ErrShipmentNotFound):
		return classify(domain.CodeTrackingUnavailable, false)
	}

	return &domain.Error{Code: domain.CodeInternal, Message: "internal error", Err: err}
}

// translateNoRates reports ADDRESS_INVALID when every carrier rejected the
// address, since re-shopping cannot help until the address is fixed.
func translateNoRates(noRates *shipping.NoRatesError, err error) error {
	allAddress := len(noRates.Failures) > 0
	retryable := false
	for _, f := range noRates.Failures {
		if f.Code != shipping.FailureAddressInvalid {
			allAddress = false
		}
		if f.Retryable {
			retryable = true
		}
	}

	code := domain.CodeNoRatesAvailable
	if allAddress {
		code = domain.CodeAddressInvalid
	}
	return &domain.Error{Code: code, Message: err.Error(), Retryable: retryable, Err: err}
}
