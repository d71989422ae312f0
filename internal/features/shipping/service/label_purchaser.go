package service

import (
	"context"
	"fmt"
	"time"

	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"
	carriers "fulfillment-engine/internal/features/carriers/domain"
	orders "fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/shipping/domain"
	"fulfillment-engine/internal/features/shipping/ports"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LabelPayload is published when a label is purchased or voided.
type LabelPayload struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number,omitempty"`
	Label       domain.ShippingLabel `json:"label"`
}

// LabelPurchaser buys at most one active label per order.
type LabelPurchaser struct {
	orders         ports.OrderReader
	carriers       ports.CarrierDirectory
	labels         ports.LabelRepository
	builder        *ShipmentBuilder
	timeline       ports.TimelineRecorder
	publisher      events.Publisher
	reservationTTL time.Duration
	timeout        time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// NewLabelPurchaser creates a LabelPurchaser. reservationTTL bounds how long an
// in-flight purchase holds the order's label slot; timeout bounds the carrier call.
func NewLabelPurchaser(
	orderReader ports.OrderReader,
	directory ports.CarrierDirectory,
	labels ports.LabelRepository,
	builder *ShipmentBuilder,
	timeline ports.TimelineRecorder,
	publisher events.Publisher,
	reservationTTL, timeout time.Duration,
) *LabelPurchaser {
	return &LabelPurchaser{
		orders:         orderReader,
		carriers:       directory,
		labels:         labels,
		builder:        builder,
		timeline:       timeline,
		publisher:      publisher,
		reservationTTL: reservationTTL,
		timeout:        timeout,
		now:            time.Now,
		logger:         logger.Named("labels"),
	}
}

// PurchaseLabel buys a label for rateID and attaches it to the order.
//
// The order's label slot is reserved atomically before the carrier is called,
// so a second purchase fails with domain.ErrLabelAlreadyExists without any
// external call. Carrier errors are returned untranslated and leave no writes.
// Once the carrier has sold a label the slot is only freed if the order
// refuses it (for example, cancelled meanwhile). A crash or storage failure
// between the carrier purchase and the commit leaves a bought but unrecorded
// label; the reservation then expires after reservationTTL.
func (p *LabelPurchaser) PurchaseLabel(ctx context.Context, orderID, rateID string) (*domain.ShippingLabel, *orders.Order, error) {
	order, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.ShippingLabelID != "" {
		metrics.DuplicateLabelRejectionsTotal.Inc()
		return nil, nil, fmt.Errorf("%w: order %s has label %s", domain.ErrLabelAlreadyExists, orderID, order.ShippingLabelID)
	}
	if !order.Status.IsShippable() {
		return nil, nil, fmt.Errorf("%w: order %s is %s", orders.ErrNotShippable, orderID, order.Status)
	}

	gateway, nativeID, err := p.carriers.ForRateID(rateID)
	if err != nil {
		return nil, nil, err
	}

	token := uuid.NewString()
	reserved, err := p.labels.Reserve(ctx, orderID, token, p.reservationTTL)
	if err != nil {
		return nil, nil, err
	}
	if !reserved {
		metrics.DuplicateLabelRejectionsTotal.Inc()
		return nil, nil, fmt.Errorf("%w: order %s", domain.ErrLabelAlreadyExists, orderID)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	purchased, err := gateway.PurchaseLabel(callCtx, carriers.LabelRequest{
		RateID:    nativeID,
		Shipment:  p.builder.Build(order),
		Reference: order.OrderNumber,
	})
	cancel()
	if err != nil {
		p.release(orderID, token)
		p.logger.Warn("Label purchase failed",
			zap.String("order_id", orderID),
			zap.String("carrier", gateway.Code()),
			zap.Error(err),
		)
		return nil, nil, err
	}

	now := p.now().UTC()
	label := &domain.ShippingLabel{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		Carrier:        gateway.Code(),
		RateID:         rateID,
		ServiceCode:    purchased.ServiceCode,
		ServiceName:    purchased.ServiceName,
		TrackingNumber: purchased.TrackingNumber,
		Cost:           purchased.Cost,
		Currency:       "USD",
		LabelURL:       purchased.LabelURL,
		CarrierRef:     purchased.CarrierRef,
		Status:         domain.LabelStatusCreated,
		CreatedAt:      now,
	}

	rejected := false
	updated, err := p.labels.Commit(ctx, token, label, func(o *orders.Order) error {
		if err := o.AttachLabel(label.ID, label.Carrier, label.TrackingNumber, now); err != nil {
			rejected = true
			return err
		}
		return nil
	})
	if err != nil {
		p.logger.Error("Label bought but not recorded",
			zap.String("order_id", orderID),
			zap.String("carrier", label.Carrier),
			zap.String("tracking_number", label.TrackingNumber),
			zap.Bool("order_rejected", rejected),
			zap.Error(err),
		)
		// The slot stays held until the reservation expires unless the order
		// itself refused the label; otherwise a retry would buy a second one.
		if rejected {
			p.release(orderID, token)
		}
		return nil, nil, err
	}
	metrics.LabelsPurchasedTotal.WithLabelValues(label.Carrier).Inc()

	p.logger.Info("Label purchased",
		zap.String("order_id", orderID),
		zap.String("label_id", label.ID),
		zap.String("carrier", label.Carrier),
		zap.String("tracking_number", label.TrackingNumber),
		zap.String("cost", label.Cost.StringFixed(2)),
	)

	p.record(ctx, orderID, tracking.InternalEvent{
		OccurredAt:  now,
		Actor:       "system",
		Kind:        tracking.KindLabelBought,
		Description: fmt.Sprintf("%s label purchased, tracking number %s", label.Carrier, label.TrackingNumber),
		OrderStatus: string(updated.Status),
	})
	p.publish(ctx, events.New(events.LabelPurchased, orderID, LabelPayload{
		OrderID:     orderID,
		OrderNumber: updated.OrderNumber,
		Label:       *label,
	}))

	return label, updated, nil
}

// VoidLabel cancels the active label of an order that has not shipped yet,
// freeing the slot for a new purchase. No carrier refund is requested.
func (p *LabelPurchaser) VoidLabel(ctx context.Context, orderID, actor string) (*domain.ShippingLabel, error) {
	if actor == "" {
		actor = "system"
	}

	now := p.now().UTC()
	label, err := p.labels.Void(ctx, orderID, now, func(o *orders.Order, l *domain.ShippingLabel) error {
		return o.DetachLabel(l.ID, now)
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("Label voided",
		zap.String("order_id", orderID),
		zap.String("label_id", label.ID),
		zap.String("actor", actor),
	)

	p.record(ctx, orderID, tracking.InternalEvent{
		OccurredAt:  now,
		Actor:       actor,
		Kind:        tracking.KindLabelVoided,
		Description: fmt.Sprintf("%s label %s voided by %s", label.Carrier, label.TrackingNumber, actor),
	})
	p.publish(ctx, events.New(events.LabelVoided, orderID, LabelPayload{
		OrderID: orderID,
		Label:   *label,
	}))

	return label, nil
}

// ActiveLabel returns the active label of an order.
func (p *LabelPurchaser) ActiveLabel(ctx context.Context, orderID string) (*domain.ShippingLabel, error) {
	return p.labels.Active(ctx, orderID)
}

// release frees the slot with a fresh context so a cancelled request does not
// keep the order locked until the reservation expires.
func (p *LabelPurchaser) release(orderID, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.labels.Release(ctx, orderID, token); err != nil {
		p.logger.Warn("Failed to release label reservation",
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

func (p *LabelPurchaser) record(ctx context.Context, orderID string, event tracking.InternalEvent) {
	if p.timeline == nil {
		return
	}
	if err := p.timeline.RecordEvent(ctx, orderID, event); err != nil {
		p.logger.Warn("Failed to record timeline event",
			zap.String("order_id", orderID),
			zap.String("kind", event.Kind),
			zap.Error(err),
		)
	}
}

func (p *LabelPurchaser) publish(ctx context.Context, event events.Event) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}
}
