package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/fulfillment/domain"
	"fulfillment-engine/internal/features/fulfillment/ports"
	orders "fulfillment-engine/internal/features/orders/domain"
	returns "fulfillment-engine/internal/features/returns/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"go.uber.org/zap"
)

// LabelPurchase is the result of buying a label: the label and the order it was attached to.
type LabelPurchase struct {
	Label *shipping.ShippingLabel `json:"label"`
	Order *orders.Order           `json:"order"`
}

// Orchestrator is the façade over the fulfillment components. It sequences
// calls and translates every error into a *domain.Error.
type Orchestrator struct {
	checkout ports.Checkout
	orders   ports.OrderLifecycle
	rates    ports.RateShopper
	labels   ports.LabelService
	tracking ports.TrackingService
	returns  ports.ReturnLifecycle
	logger   *zap.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(
	checkout ports.Checkout,
	lifecycle ports.OrderLifecycle,
	rates ports.RateShopper,
	labels ports.LabelService,
	trackingService ports.TrackingService,
	returnLifecycle ports.ReturnLifecycle,
) *Orchestrator {
	return &Orchestrator{
		checkout: checkout,
		orders:   lifecycle,
		rates:    rates,
		labels:   labels,
		tracking: trackingService,
		returns:  returnLifecycle,
		logger:   logger.Named("fulfillment"),
	}
}

// PlaceOrder creates an order from a completed checkout.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error) {
	order, err := o.checkout.PlaceOrder(ctx, req)
	return order, o.fail("place order", "", err)
}

// GetOrder returns an order by id.
func (o *Orchestrator) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	order, err := o.orders.GetOrder(ctx, orderID)
	return order, o.fail("get order", orderID, err)
}

// GetRatesForOrder shops every carrier for the order's shipment.
func (o *Orchestrator) GetRatesForOrder(ctx context.Context, orderID string) (*shipping.RateQuote, error) {
	order, err := o.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, o.fail("shop rates", orderID, err)
	}
	if !order.Status.IsShippable() {
		return nil, o.fail("shop rates", orderID, fmt.Errorf("%w: order is %s", orders.ErrNotShippable, order.Status))
	}
	quote, err := o.rates.ShopRates(ctx, order)
	return quote, o.fail("shop rates", orderID, err)
}

// PurchaseAndAttachLabel buys the label for a quoted rate and attaches it to the order.
func (o *Orchestrator) PurchaseAndAttachLabel(ctx context.Context, orderID, rateID string) (*LabelPurchase, error) {
	if strings.TrimSpace(rateID) == "" {
		return nil, o.fail("purchase label", orderID, fmt.Errorf("%w: rate id is required", orders.ErrInvalidOrder))
	}
	label, order, err := o.labels.PurchaseLabel(ctx, orderID, rateID)
	if err != nil {
		return nil, o.fail("purchase label", orderID, err)
	}
	return &LabelPurchase{Label: label, Order: order}, nil
}

// VoidLabel voids the order's active label before it ships.
func (o *Orchestrator) VoidLabel(ctx context.Context, orderID, actor string) (*shipping.ShippingLabel, error) {
	label, err := o.labels.VoidLabel(ctx, orderID, actor)
	return label, o.fail("void label", orderID, err)
}

// ActiveLabel returns the order's active label.
func (o *Orchestrator) ActiveLabel(ctx context.Context, orderID string) (*shipping.ShippingLabel, error) {
	label, err := o.labels.ActiveLabel(ctx, orderID)
	return label, o.fail("get label", orderID, err)
}

// RefreshOrderTracking resynchronizes carrier events. A carrier outage is
// reported as a warning on the returned timeline, not as an error.
func (o *Orchestrator) RefreshOrderTracking(ctx context.Context, orderID string) (*tracking.Timeline, error) {
	timeline, err := o.tracking.Refresh(ctx, orderID)
	return timeline, o.fail("refresh tracking", orderID, err)
}

// OrderTimeline returns the stored timeline without calling the carrier.
func (o *Orchestrator) OrderTimeline(ctx context.Context, orderID string) (*tracking.Timeline, error) {
	timeline, err := o.tracking.Timeline(ctx, orderID)
	return timeline, o.fail("get timeline", orderID, err)
}

// SetOrderStatus transitions one order.
func (o *Orchestrator) SetOrderStatus(ctx context.Context, orderID, status string, meta orders.TransitionMetadata) (*orders.Order, error) {
	target, err := orders.ParseOrderStatus(status)
	if err != nil {
		return nil, o.fail("set status", orderID, err)
	}
	order, err := o.orders.Transition(ctx, orderID, target, meta)
	return order, o.fail("set status", orderID, err)
}

// BulkSetOrderStatus transitions every order independently. Only a malformed
// request fails as a whole; per-order failures are reported in the outcome.
func (o *Orchestrator) BulkSetOrderStatus(ctx context.Context, orderIDs []string, status string, meta orders.TransitionMetadata) (*domain.BulkOutcome, error) {
	target, err := orders.ParseOrderStatus(status)
	if err != nil {
		return nil, o.fail("bulk set status", "", err)
	}
	if len(orderIDs) == 0 {
		return nil, o.fail("bulk set status", "", fmt.Errorf("%w: no order ids", orders.ErrInvalidOrder))
	}

	result := o.orders.BulkTransition(ctx, orderIDs, target, meta)

	outcome := &domain.BulkOutcome{
		UpdatedCount: result.UpdatedCount,
		FailedCount:  result.FailedCount,
		Updated:      result.Updated,
		Failures:     make([]domain.ItemFailure, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		code := domain.CodeInternal
		var fe *domain.Error
		if errors.As(Translate(f.Err), &fe) {
			code = fe.Code
		}
		outcome.Failures = append(outcome.Failures, domain.ItemFailure{
			OrderID: f.OrderID,
			Code:    code,
			Reason:  f.Reason,
		})
	}
	return outcome, nil
}

// OpenReturn opens a return against a delivered order.
func (o *Orchestrator) OpenReturn(ctx context.Context, req returns.CreateReturnRequest) (*returns.Return, error) {
	ret, err := o.returns.CreateReturn(ctx, req)
	return ret, o.fail("open return", req.OrderID, err)
}

// GetReturn returns a return by id.
func (o *Orchestrator) GetReturn(ctx context.Context, returnID string) (*returns.Return, error) {
	ret, err := o.returns.GetReturn(ctx, returnID)
	return ret, o.fail("get return", "", err)
}

// OrderReturns lists the returns of an order.
func (o *Orchestrator) OrderReturns(ctx context.Context, orderID string) ([]returns.Return, error) {
	list, err := o.returns.ListReturns(ctx, orderID)
	return list, o.fail("list returns", orderID, err)
}

// AdvanceReturn transitions a return. Reaching REFUNDED moves the money first.
func (o *Orchestrator) AdvanceReturn(ctx context.Context, returnID, status string, meta returns.TransitionMetadata) (*returns.Return, error) {
	target, err := returns.ParseReturnStatus(status)
	if err != nil {
		return nil, o.fail("advance return", "", err)
	}
	ret, err := o.returns.Transition(ctx, returnID, target, meta)
	return ret, o.fail("advance return", "", err)
}

// InspectReturn records the inspected condition of return items.
func (o *Orchestrator) InspectReturn(ctx context.Context, returnID string, inspections []returns.Inspection) (*returns.Return, error) {
	ret, err := o.returns.RecordInspection(ctx, returnID, inspections)
	return ret, o.fail("inspect return", "", err)
}

// fail translates err and logs unexpected failures. It returns nil for a nil err.
func (o *Orchestrator) fail(operation, orderID string, err error) error {
	if err == nil {
		return nil
	}
	translated := Translate(err)

	var fe *domain.Error
	if errors.As(translated, &fe) && fe.Code == domain.CodeInternal {
		o.logger.Error("Fulfillment operation failed",
			zap.String("operation", operation),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
	return translated
}
