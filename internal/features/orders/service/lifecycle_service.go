package service

import (
	"context"
	"fmt"
	"time"

	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"
	"fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/orders/ports"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatusChangedPayload is published on every successful order transition.
// SHIPPED events feed the external shipping notification email.
type StatusChangedPayload struct {
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	From           domain.OrderStatus `json:"from"`
	To             domain.OrderStatus `json:"to"`
	Actor          string             `json:"actor"`
	Note           string             `json:"note,omitempty"`
	CustomerEmail  string             `json:"customer_email"`
	Carrier        string             `json:"carrier,omitempty"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
}

// LifecycleService owns the order state machine.
type LifecycleService struct {
	repo      ports.OrderRepository
	timeline  ports.TimelineRecorder
	publisher events.Publisher
	workers   int
	now       func() time.Time
	logger    *zap.Logger
}

// NewLifecycleService creates a LifecycleService. workers caps the concurrency of bulk transitions.
func NewLifecycleService(repo ports.OrderRepository, timeline ports.TimelineRecorder, publisher events.Publisher, workers int) *LifecycleService {
	if workers < 1 {
		workers = 1
	}
	return &LifecycleService{
		repo:      repo,
		timeline:  timeline,
		publisher: publisher,
		workers:   workers,
		now:       time.Now,
		logger:    logger.Named("orders"),
	}
}

// GetOrder returns an order by id.
func (s *LifecycleService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// Transition moves one order to target. Illegal transitions fail with an
// error matching domain.ErrInvalidTransition and leave the order untouched.
func (s *LifecycleService) Transition(ctx context.Context, orderID string, target domain.OrderStatus, meta domain.TransitionMetadata) (*domain.Order, error) {
	if meta.Actor == "" {
		meta.Actor = "system"
	}

	var from domain.OrderStatus
	now := s.now()
	order, err := s.repo.Update(ctx, orderID, func(o *domain.Order) error {
		from = o.Status
		return o.Transition(target, meta, now)
	})
	if err != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(target), metrics.OutcomeFailure).Inc()
		return nil, err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(target), metrics.OutcomeSuccess).Inc()

	s.logger.Info("Order status changed",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor", meta.Actor),
	)

	description := fmt.Sprintf("status changed to %s by %s", target, meta.Actor)
	if meta.Note != "" {
		description += ": " + meta.Note
	}
	s.record(ctx, order.ID, tracking.InternalEvent{
		OccurredAt:  now.UTC(),
		Actor:       meta.Actor,
		Kind:        tracking.KindStatusChanged,
		Description: description,
		OrderStatus: string(target),
	})

	s.publish(ctx, events.New(events.OrderStatusChanged, order.ID, StatusChangedPayload{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		From:           from,
		To:             target,
		Actor:          meta.Actor,
		Note:           meta.Note,
		CustomerEmail:  order.Customer.Email,
		Carrier:        order.Carrier,
		TrackingNumber: order.TrackingNumber,
	}))

	return order, nil
}

// BulkTransition applies Transition to every id independently. Failures are
// collected per order and never affect the other orders.
func (s *LifecycleService) BulkTransition(ctx context.Context, orderIDs []string, target domain.OrderStatus, meta domain.TransitionMetadata) *domain.BulkResult {
	// A version guard only makes sense for a single order.
	meta.ExpectedVersion = nil

	errs := make([]error, len(orderIDs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, id := range orderIDs {
		g.Go(func() error {
			_, errs[i] = s.Transition(ctx, id, target, meta)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.BulkResult{
		Updated:  make([]string, 0, len(orderIDs)),
		Failures: make([]domain.BulkFailure, 0),
	}
	for i, id := range orderIDs {
		if errs[i] != nil {
			result.Failures = append(result.Failures, domain.BulkFailure{
				OrderID: id,
				Reason:  errs[i].Error(),
				Err:     errs[i],
			})
			continue
		}
		result.Updated = append(result.Updated, id)
	}
	result.UpdatedCount = len(result.Updated)
	result.FailedCount = len(result.Failures)

	s.logger.Info("Bulk status change finished",
		zap.String("status", string(target)),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("failed", result.FailedCount),
	)
	return result
}

func (s *LifecycleService) record(ctx context.Context, orderID string, event tracking.InternalEvent) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.RecordEvent(ctx, orderID, event); err != nil {
		s.logger.Warn("Failed to record timeline event",
			zap.String("order_id", orderID),
			zap.String("kind", event.Kind),
			zap.Error(err),
		)
	}
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("key", event.Key),
			zap.Error(err),
		)
	}
}
