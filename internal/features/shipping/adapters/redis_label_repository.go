package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fulfillment-engine/internal/core/cache"
	orderadapters "fulfillment-engine/internal/features/orders/adapters"
	orders "fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/shipping/domain"
)

// LockKey holds the purchase token while a label is in flight, then the active label id.
func LockKey(orderID string) string {
	return "label:lock:" + orderID
}

// LabelsKey holds every label of an order.
func LabelsKey(orderID string) string {
	return "labels:order:" + orderID
}

// maxCommitAttempts bounds the retries of a label commit racing other order writes.
const maxCommitAttempts = 5

// RedisLabelRepository implements ports.LabelRepository on top of the cache adapter.
// The order record is written in the same transaction as the label.
type RedisLabelRepository struct {
	cache cache.Cache
}

// NewRedisLabelRepository creates a new RedisLabelRepository.
func NewRedisLabelRepository(c cache.Cache) *RedisLabelRepository {
	return &RedisLabelRepository{
		cache: c,
	}
}

// Reserve claims the label slot with SETNX.
func (r *RedisLabelRepository) Reserve(ctx context.Context, orderID, token string, ttl time.Duration) (bool, error) {
	ok, err := r.cache.SetNX(ctx, LockKey(orderID), []byte(token), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to reserve label slot: %w", err)
	}
	return ok, nil
}

// Release deletes the slot only if token still holds it.
func (r *RedisLabelRepository) Release(ctx context.Context, orderID, token string) error {
	key := LockKey(orderID)
	err := r.cache.Transaction(ctx, []string{key}, func(current map[string][]byte) (map[string][]byte, error) {
		if string(current[key]) != token {
			return nil, nil
		}
		return map[string][]byte{key: nil}, nil
	})
	if err != nil {
		return fmt.Errorf("failed to release label slot: %w", err)
	}
	return nil
}

// Commit persists the label, points the slot at it and updates the order atomically.
// Conflicts with other writers are retried up to maxCommitAttempts times.
func (r *RedisLabelRepository) Commit(ctx context.Context, token string, label *domain.ShippingLabel, attach func(order *orders.Order) error) (*orders.Order, error) {
	lockKey, labelsKey, orderKey := LockKey(label.OrderID), LabelsKey(label.OrderID), orderadapters.OrderKey(label.OrderID)
	var updated *orders.Order

	commit := func(current map[string][]byte) (map[string][]byte, error) {
		if string(current[lockKey]) != token {
			return nil, domain.ErrReservationLost
		}

		data, ok := current[orderKey]
		if !ok {
			return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, label.OrderID)
		}
		order, err := orderadapters.DecodeOrder(data)
		if err != nil {
			return nil, err
		}
		if err := attach(order); err != nil {
			return nil, err
		}

		labels, err := decodeLabels(current[labelsKey])
		if err != nil {
			return nil, err
		}
		labels = append(labels, *label)

		encodedLabels, err := json.Marshal(labels)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal labels: %w", err)
		}
		encodedOrder, err := json.Marshal(order)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order: %w", err)
		}

		updated = order
		return map[string][]byte{
			lockKey:   []byte(label.ID),
			labelsKey: encodedLabels,
			orderKey:  encodedOrder,
		}, nil
	}

	// The label is already paid for, so a concurrent order write is retried
	// against the fresh order rather than reported.
	var err error
	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		err = r.cache.Transaction(ctx, []string{lockKey, labelsKey, orderKey}, commit)
		if !errors.Is(err, cache.ErrConflict) {
			break
		}
	}
	if errors.Is(err, cache.ErrConflict) {
		return nil, fmt.Errorf("%w: %s", orders.ErrConcurrentModification, label.OrderID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Active returns the label currently holding the slot.
func (r *RedisLabelRepository) Active(ctx context.Context, orderID string) (*domain.ShippingLabel, error) {
	labels, err := r.List(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := len(labels) - 1; i >= 0; i-- {
		if labels[i].IsActive() {
			return &labels[i], nil
		}
	}
	return nil, fmt.Errorf("%w: order %s", domain.ErrLabelNotFound, orderID)
}

// List returns all labels of the order in purchase order.
func (r *RedisLabelRepository) List(ctx context.Context, orderID string) ([]domain.ShippingLabel, error) {
	data, err := r.cache.Get(ctx, LabelsKey(orderID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return []domain.ShippingLabel{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", err)
	}
	return decodeLabels(data)
}

// Void voids the active label, detaches it from the order and frees the slot.
func (r *RedisLabelRepository) Void(ctx context.Context, orderID string, now time.Time, detach func(order *orders.Order, label *domain.ShippingLabel) error) (*domain.ShippingLabel, error) {
	lockKey, labelsKey, orderKey := LockKey(orderID), LabelsKey(orderID), orderadapters.OrderKey(orderID)
	var voided *domain.ShippingLabel

	err := r.cache.Transaction(ctx, []string{lockKey, labelsKey, orderKey}, func(current map[string][]byte) (map[string][]byte, error) {
		data, ok := current[orderKey]
		if !ok {
			return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, orderID)
		}
		order, err := orderadapters.DecodeOrder(data)
		if err != nil {
			return nil, err
		}

		labels, err := decodeLabels(current[labelsKey])
		if err != nil {
			return nil, err
		}
		idx := -1
		for i := range labels {
			if labels[i].IsActive() && labels[i].ID == string(current[lockKey]) {
				idx = i
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: order %s", domain.ErrLabelNotFound, orderID)
		}

		if err := detach(order, &labels[idx]); err != nil {
			return nil, err
		}
		t := now.UTC()
		labels[idx].Status = domain.LabelStatusVoided
		labels[idx].VoidedAt = &t

		encodedLabels, err := json.Marshal(labels)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal labels: %w", err)
		}
		encodedOrder, err := json.Marshal(order)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order: %w", err)
		}

		label := labels[idx]
		voided = &label
		return map[string][]byte{
			lockKey:   nil,
			labelsKey: encodedLabels,
			orderKey:  encodedOrder,
		}, nil
	})
	if errors.Is(err, cache.ErrConflict) {
		return nil, fmt.Errorf("%w: %s", orders.ErrConcurrentModification, orderID)
	}
	if err != nil {
		return nil, err
	}
	return voided, nil
}

func decodeLabels(data []byte) ([]domain.ShippingLabel, error) {
	if len(data) == 0 {
		return []domain.ShippingLabel{}, nil
	}
	var labels []domain.ShippingLabel
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	return labels, nil
}
