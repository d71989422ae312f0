package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"
	carriers "fulfillment-engine/internal/features/carriers/domain"
	carrierports "fulfillment-engine/internal/features/carriers/ports"
	orders "fulfillment-engine/internal/features/orders/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	"fulfillment-engine/internal/features/tracking/domain"
	"fulfillment-engine/internal/features/tracking/ports"

	"go.uber.org/zap"
)

// TrackingRefreshedPayload is published after a successful carrier synchronization.
type TrackingRefreshedPayload struct {
	OrderID        string                  `json:"order_id"`
	Carrier        string                  `json:"carrier"`
	TrackingNumber string                  `json:"tracking_number"`
	Status         carriers.TrackingStatus `json:"status"`
	EventCount     int                     `json:"event_count"`
}

// Reconciler synchronizes carrier tracking events and serves the merged order timeline.
type Reconciler struct {
	orders    ports.OrderReader
	labels    ports.LabelReader
	carriers  ports.CarrierFinder
	repo      ports.TrackingRepository
	publisher events.Publisher
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewReconciler creates a Reconciler. timeout bounds each carrier call.
func NewReconciler(
	orderReader ports.OrderReader,
	labels ports.LabelReader,
	finder ports.CarrierFinder,
	repo ports.TrackingRepository,
	publisher events.Publisher,
	timeout time.Duration,
) *Reconciler {
	return &Reconciler{
		orders:    orderReader,
		labels:    labels,
		carriers:  finder,
		repo:      repo,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
		logger:    logger.Named("tracking"),
	}
}

// Refresh pulls the carrier's events and replaces the stored ones wholesale.
// A carrier failure is not an error: the cached events are kept and the
// returned timeline carries a TRACKING_UNAVAILABLE warning.
func (r *Reconciler) Refresh(ctx context.Context, orderID string) (*domain.Timeline, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	carrier, trackingNumber, err := r.resolve(ctx, order)
	if err != nil {
		return nil, err
	}

	gateway, err := r.carriers.Find(carrier)
	if err != nil {
		return r.stale(ctx, order.ID, carrier, trackingNumber, err)
	}

	carrierEvents, err := r.fetch(ctx, gateway, trackingNumber)
	if err != nil {
		return r.stale(ctx, order.ID, carrier, trackingNumber, err)
	}

	snapshot := &domain.CarrierSnapshot{
		OrderID:        order.ID,
		Carrier:        gateway.Code(),
		TrackingNumber: trackingNumber,
		Events:         domain.SortCarrierEvents(carrierEvents),
		RefreshedAt:    r.now().UTC(),
	}
	if err := r.repo.ReplaceCarrierEvents(ctx, snapshot); err != nil {
		metrics.TrackingRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.TrackingRefreshesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	status := domain.CurrentStatus(snapshot.Events)
	r.logger.Info("Tracking refreshed",
		zap.String("order_id", order.ID),
		zap.String("carrier", snapshot.Carrier),
		zap.String("tracking_number", trackingNumber),
		zap.String("status", string(status)),
		zap.Int("events", len(snapshot.Events)),
	)

	if r.publisher != nil {
		err := r.publisher.Publish(ctx, events.New(events.TrackingRefreshed, order.ID, TrackingRefreshedPayload{
			OrderID:        order.ID,
			Carrier:        snapshot.Carrier,
			TrackingNumber: trackingNumber,
			Status:         status,
			EventCount:     len(snapshot.Events),
		}))
		if err != nil {
			r.logger.Warn("Failed to publish event", zap.String("type", events.TrackingRefreshed), zap.Error(err))
		}
	}

	internal, err := r.repo.InternalEvents(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return domain.BuildTimeline(order.ID, snapshot, internal), nil
}

// Timeline returns the stored timeline without contacting the carrier.
func (r *Reconciler) Timeline(ctx context.Context, orderID string) (*domain.Timeline, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	timeline, err := r.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if timeline.TrackingNumber == "" {
		timeline.Carrier = order.Carrier
		timeline.TrackingNumber = order.TrackingNumber
	}
	return timeline, nil
}

// RecordEvent appends an internal event to the order timeline.
func (r *Reconciler) RecordEvent(ctx context.Context, orderID string, event domain.InternalEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now().UTC()
	}
	return r.repo.AppendInternal(ctx, orderID, event)
}

// resolve prefers the active label and falls back to manually entered tracking.
func (r *Reconciler) resolve(ctx context.Context, order *orders.Order) (string, string, error) {
	label, err := r.labels.Active(ctx, order.ID)
	switch {
	case err == nil:
		return label.Carrier, label.TrackingNumber, nil
	case !errors.Is(err, shipping.ErrLabelNotFound):
		return "", "", err
	}

	if order.HasTracking() {
		return order.Carrier, order.TrackingNumber, nil
	}
	return "", "", fmt.Errorf("%w: order %s", domain.ErrNoTrackingInfo, order.ID)
}

// fetch calls the carrier under its own deadline. A gateway that ignores the
// context is abandoned when the deadline passes.
func (r *Reconciler) fetch(ctx context.Context, gateway carrierports.CarrierGateway, trackingNumber string) ([]carriers.TrackingEvent, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		events []carriers.TrackingEvent
		err    error
	}
	done := make(chan result, 1)
	go func() {
		tracked, err := gateway.GetTrackingEvents(callCtx, trackingNumber)
		done <- result{events: tracked, err: err}
	}()

	select {
	case res := <-done:
		return res.events, res.err
	case <-callCtx.Done():
		return nil, &carriers.CarrierError{
			Carrier:   gateway.Code(),
			Operation: "tracking",
			Kind:      carriers.ErrCarrierUnavailable,
			Message:   fmt.Sprintf("no response within %s", r.timeout),
			Err:       callCtx.Err(),
		}
	}
}

// stale serves the cached timeline with a warning after a failed refresh.
func (r *Reconciler) stale(ctx context.Context, orderID, carrier, trackingNumber string, cause error) (*domain.Timeline, error) {
	metrics.TrackingRefreshesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
	r.logger.Warn("Tracking refresh failed, serving cached events",
		zap.String("order_id", orderID),
		zap.String("carrier", carrier),
		zap.String("tracking_number", trackingNumber),
		zap.Error(cause),
	)

	timeline, err := r.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if timeline.TrackingNumber == "" {
		timeline.Carrier = carrier
		timeline.TrackingNumber = trackingNumber
	}
	timeline.Warning = &domain.RefreshWarning{
		Code:      domain.WarningTrackingUnavailable,
		Message:   cause.Error(),
		Retryable: carriers.IsRetryable(cause),
	}
	return timeline, nil
}

func (r *Reconciler) load(ctx context.Context, orderID string) (*domain.Timeline, error) {
	snapshot, err := r.repo.CarrierSnapshot(ctx, orderID)
	if err != nil {
		return nil, err
	}
	internal, err := r.repo.InternalEvents(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return domain.BuildTimeline(orderID, snapshot, internal), nil
}
