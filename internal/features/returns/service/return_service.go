package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"
	orderports "fulfillment-engine/internal/features/orders/ports"
	"fulfillment-engine/internal/features/returns/domain"
	"fulfillment-engine/internal/features/returns/ports"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxRefundWriteAttempts bounds retries of refund bookkeeping that raced
// another change to the same order's returns.
const maxRefundWriteAttempts = 3

// ReturnCreatedPayload is published when a return is opened.
type ReturnCreatedPayload struct {
	ReturnID     string              `json:"return_id"`
	ReturnNumber string              `json:"return_number"`
	OrderID      string              `json:"order_id"`
	Reason       domain.ReturnReason `json:"reason"`
	RefundAmount decimal.Decimal     `json:"refund_amount"`
	ItemCount    int                 `json:"item_count"`
}

// ReturnStatusChangedPayload is published on every successful return transition.
type ReturnStatusChangedPayload struct {
	ReturnID        string              `json:"return_id"`
	ReturnNumber    string              `json:"return_number"`
	OrderID         string              `json:"order_id"`
	From            domain.ReturnStatus `json:"from"`
	To              domain.ReturnStatus `json:"to"`
	Actor           string              `json:"actor"`
	RefundAmount    decimal.Decimal     `json:"refund_amount"`
	RefundReference string              `json:"refund_reference,omitempty"`
}

// RestockPayload hands restockable items to the inventory collaborator.
type RestockPayload struct {
	ReturnID string              `json:"return_id"`
	OrderID  string              `json:"order_id"`
	Items    []domain.ReturnItem `json:"items"`
}

// ReturnService owns the return and refund state machine.
type ReturnService struct {
	returns   ports.ReturnRepository
	orders    ports.OrderReader
	refunder  ports.PaymentRefunder
	timeline  orderports.TimelineRecorder
	publisher events.Publisher
	policy    domain.Policy
	now       func() time.Time
	logger    *zap.Logger
}

// NewReturnService creates a ReturnService applying policy.
func NewReturnService(
	returns ports.ReturnRepository,
	orderReader ports.OrderReader,
	refunder ports.PaymentRefunder,
	timeline orderports.TimelineRecorder,
	publisher events.Publisher,
	policy domain.Policy,
) *ReturnService {
	return &ReturnService{
		returns:   returns,
		orders:    orderReader,
		refunder:  refunder,
		timeline:  timeline,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
		logger:    logger.Named("returns"),
	}
}

// GetReturn returns a return by id.
func (s *ReturnService) GetReturn(ctx context.Context, returnID string) (*domain.Return, error) {
	return s.returns.Get(ctx, returnID)
}

// ListReturns returns the returns opened against an order.
func (s *ReturnService) ListReturns(ctx context.Context, orderID string) ([]domain.Return, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.returns.ListByOrder(ctx, orderID)
}

// CreateReturn opens a PENDING return. The order must be delivered within the
// return window and no line may exceed its remaining returnable quantity.
func (s *ReturnService) CreateReturn(ctx context.Context, req domain.CreateReturnRequest) (*domain.Return, error) {
	reason, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ret := &domain.Return{
		ID:            uuid.NewString(),
		ReturnNumber:  newReturnNumber(),
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Reason:        reason,
		ReasonDetails: strings.TrimSpace(req.ReasonDetails),
		Status:        domain.ReturnStatusPending,
		Items:         make([]domain.ReturnItem, 0, len(req.Items)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	positions := make(map[string]int)
	for _, item := range req.Items {
		if idx, ok := positions[item.OrderItemID]; ok {
			ret.Items[idx].Quantity += item.Quantity
			continue
		}
		line, ok := order.Item(item.OrderItemID)
		if !ok {
			return nil, &domain.NotReturnableError{OrderID: order.ID, OrderItemID: item.OrderItemID, Reason: "not part of the order"}
		}
		positions[line.ID] = len(ret.Items)
		ret.Items = append(ret.Items, domain.ReturnItem{
			ID:          uuid.NewString(),
			OrderItemID: line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			SKU:         line.SKU,
			Name:        line.Name,
			Quantity:    item.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	err = s.returns.Create(ctx, ret, func(existing []domain.Return) error {
		if err := s.policy.CheckEligibility(order, req.Items, existing, now); err != nil {
			return err
		}
		ret.RefundAmount = s.policy.RefundAmount(order, ret.Items, domain.FullyReturned(order, ret.Items, existing))
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ReturnsCreatedTotal.Inc()

	actor := req.Actor
	if actor == "" {
		actor = "customer"
	}
	s.logger.Info("Return opened",
		zap.String("return_id", ret.ID),
		zap.String("return_number", ret.ReturnNumber),
		zap.String("order_id", order.ID),
		zap.String("reason", string(ret.Reason)),
		zap.String("refund_amount", ret.RefundAmount.StringFixed(2)),
	)

	s.record(ctx, order.ID, tracking.InternalEvent{
		OccurredAt:  now,
		Actor:       actor,
		Kind:        tracking.KindReturnOpened,
		Description: fmt.Sprintf("return %s opened by %s", ret.ReturnNumber, actor),
		OrderStatus: string(order.Status),
	})
	s.publish(ctx, events.New(events.ReturnCreated, order.ID, ReturnCreatedPayload{
		ReturnID:     ret.ID,
		ReturnNumber: ret.ReturnNumber,
		OrderID:      order.ID,
		Reason:       ret.Reason,
		RefundAmount: ret.RefundAmount,
		ItemCount:    len(ret.Items),
	}))

	return ret, nil
}

// Transition moves a return one step along its path. Moving to REFUNDED calls
// the payment processor first; if it fails the return stays REFUND_PENDING and
// an error matching domain.ErrRefundFailed is returned. Restockable items are
// handed to inventory whenever a return leaves INSPECTING.
func (s *ReturnService) Transition(ctx context.Context, returnID string, target domain.ReturnStatus, meta domain.TransitionMetadata) (*domain.Return, error) {
	if meta.Actor == "" {
		meta.Actor = "system"
	}
	if target == domain.ReturnStatusRefunded {
		return s.refund(ctx, returnID, meta)
	}

	var from domain.ReturnStatus
	now := s.now()
	ret, err := s.returns.Update(ctx, returnID, func(r *domain.Return) error {
		from = r.Status
		return r.Transition(target, meta, now)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, ret, from, meta.Actor, now)

	if from == domain.ReturnStatusInspecting {
		if items := ret.RestockableItems(); len(items) > 0 {
			s.publish(ctx, events.New(events.ReturnRestockRequested, ret.OrderID, RestockPayload{
				ReturnID: ret.ID,
				OrderID:  ret.OrderID,
				Items:    items,
			}))
		}
	}
	return ret, nil
}

// RecordInspection annotates items with their inspected condition.
func (s *ReturnService) RecordInspection(ctx context.Context, returnID string, inspections []domain.Inspection) (*domain.Return, error) {
	if len(inspections) == 0 {
		return nil, fmt.Errorf("%w: no items inspected", domain.ErrInvalidReturn)
	}

	now := s.now()
	ret, err := s.returns.Update(ctx, returnID, func(r *domain.Return) error {
		for _, in := range inspections {
			if err := r.RecordInspection(in.ItemID, in.Condition, in.Restockable, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Return items inspected",
		zap.String("return_id", ret.ID),
		zap.Int("items", len(inspections)),
		zap.Int("restockable", len(ret.RestockableItems())),
	)
	return ret, nil
}

// refund moves the money before recording REFUNDED. The return is claimed
// first so it cannot be cancelled while the processor call is in flight. The
// return id is the processor idempotency key, so a retry after a lost write
// does not pay twice.
func (s *ReturnService) refund(ctx context.Context, returnID string, meta domain.TransitionMetadata) (*domain.Return, error) {
	current, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, current.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claimed, err := s.returns.Update(ctx, returnID, func(r *domain.Return) error {
		return r.BeginRefund(now)
	})
	if err != nil {
		return nil, err
	}

	var reference string
	if order.PaymentTransactionID == "" {
		err = fmt.Errorf("order %s has no payment transaction to refund", order.ID)
	} else {
		reference, err = s.refunder.Refund(ctx, order.PaymentTransactionID, claimed.RefundAmount, claimed.ID)
	}
	if err != nil {
		return nil, s.refundFailed(ctx, returnID, err)
	}
	metrics.RefundsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	// The money has moved; record it even if the caller has gone away.
	refunded, err := s.updateRetrying(context.WithoutCancel(ctx), returnID, func(r *domain.Return) error {
		return r.MarkRefunded(reference, now)
	})
	if err != nil {
		s.logger.Error("Refund succeeded but the return could not be updated",
			zap.String("return_id", returnID),
			zap.String("refund_reference", reference),
			zap.Error(err),
		)
		return nil, err
	}

	s.changed(ctx, refunded, domain.ReturnStatusRefundPending, meta.Actor, now)
	return refunded, nil
}

func (s *ReturnService) refundFailed(ctx context.Context, returnID string, cause error) error {
	metrics.RefundsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()

	attempt := 0
	ret, err := s.updateRetrying(context.WithoutCancel(ctx), returnID, func(r *domain.Return) error {
		r.RecordRefundFailure(cause, s.now())
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record refund failure", zap.String("return_id", returnID), zap.Error(err))
	} else {
		attempt = ret.RefundAttempts
	}

	s.logger.Warn("Refund failed, return left in REFUND_PENDING",
		zap.String("return_id", returnID),
		zap.Int("attempt", attempt),
		zap.Error(cause),
	)
	return &domain.RefundError{ReturnID: returnID, Attempt: attempt, Err: cause}
}

func (s *ReturnService) updateRetrying(ctx context.Context, returnID string, fn func(r *domain.Return) error) (*domain.Return, error) {
	var (
		ret *domain.Return
		err error
	)
	for attempt := 0; attempt < maxRefundWriteAttempts; attempt++ {
		ret, err = s.returns.Update(ctx, returnID, fn)
		if !errors.Is(err, domain.ErrConcurrentModification) {
			break
		}
	}
	return ret, err
}

func (s *ReturnService) changed(ctx context.Context, ret *domain.Return, from domain.ReturnStatus, actor string, now time.Time) {
	s.logger.Info("Return status changed",
		zap.String("return_id", ret.ID),
		zap.String("from", string(from)),
		zap.String("to", string(ret.Status)),
		zap.String("actor", actor),
	)

	s.record(ctx, ret.OrderID, tracking.InternalEvent{
		OccurredAt:  now.UTC(),
		Actor:       actor,
		Kind:        tracking.KindReturnUpdated,
		Description: fmt.Sprintf("return %s changed to %s by %s", ret.ReturnNumber, ret.Status, actor),
	})
	s.publish(ctx, events.New(events.ReturnStatusChanged, ret.OrderID, ReturnStatusChangedPayload{
		ReturnID:        ret.ID,
		ReturnNumber:    ret.ReturnNumber,
		OrderID:         ret.OrderID,
		From:            from,
		To:              ret.Status,
		Actor:           actor,
		RefundAmount:    ret.RefundAmount,
		RefundReference: ret.RefundReference,
	}))
}

func (s *ReturnService) record(ctx context.Context, orderID string, event tracking.InternalEvent) {
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

func (s *ReturnService) publish(ctx context.Context, event events.Event) {
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

func validateCreate(req domain.CreateReturnRequest) (domain.ReturnReason, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return "", fmt.Errorf("%w: order id is required", domain.ErrInvalidReturn)
	}
	if len(req.Items) == 0 {
		return "", fmt.Errorf("%w: at least one item is required", domain.ErrInvalidReturn)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return "", fmt.Errorf("%w: quantity of %s must be positive", domain.ErrInvalidReturn, item.OrderItemID)
		}
	}
	reason, err := domain.ParseReturnReason(string(req.Reason))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidReturn, err)
	}
	return reason, nil
}

func newReturnNumber() string {
	return "RMA-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
