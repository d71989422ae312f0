package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/features/orders/domain"
)

// OrderKey returns the storage key of an order.
func OrderKey(orderID string) string {
	return "order:" + orderID
}

// RedisOrderRepository implements ports.OrderRepository on top of the cache adapter.
type RedisOrderRepository struct {
	cache cache.Cache
}

// NewRedisOrderRepository creates a new RedisOrderRepository.
func NewRedisOrderRepository(c cache.Cache) *RedisOrderRepository {
	return &RedisOrderRepository{
		cache: c,
	}
}

// Create stores a new order without expiration.
func (r *RedisOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	ok, err := r.cache.SetNX(ctx, OrderKey(order.ID), data, 0)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	if !ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	return nil
}

// Get retrieves an order.
func (r *RedisOrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	data, err := r.cache.Get(ctx, OrderKey(orderID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return DecodeOrder(data)
}

// Update applies fn under optimistic locking. A concurrent write is reported,
// never retried or overwritten.
func (r *RedisOrderRepository) Update(ctx context.Context, orderID string, fn func(order *domain.Order) error) (*domain.Order, error) {
	key := OrderKey(orderID)
	var updated *domain.Order

	err := r.cache.Transaction(ctx, []string{key}, func(current map[string][]byte) (map[string][]byte, error) {
		data, ok := current[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}

		order, err := DecodeOrder(data)
		if err != nil {
			return nil, err
		}
		if err := fn(order); err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(order)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order: %w", err)
		}
		updated = order
		return map[string][]byte{key: encoded}, nil
	})
	if errors.Is(err, cache.ErrConflict) {
		return nil, fmt.Errorf("%w: %s", domain.ErrConcurrentModification, orderID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DecodeOrder unmarshals a stored order.
func DecodeOrder(data []byte) (*domain.Order, error) {
	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &order, nil
}
