package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/features/returns/domain"
)

// OrderReturnsKey holds every return of an order.
func OrderReturnsKey(orderID string) string {
	return "returns:order:" + orderID
}

// ReturnIndexKey maps a return id to its order id.
func ReturnIndexKey(returnID string) string {
	return "return:" + returnID
}

// RedisReturnRepository implements ports.ReturnRepository on top of the cache adapter.
// Returns are stored per order so the quantity check and the insert share one transaction.
type RedisReturnRepository struct {
	cache cache.Cache
}

// NewRedisReturnRepository creates a new RedisReturnRepository.
func NewRedisReturnRepository(c cache.Cache) *RedisReturnRepository {
	return &RedisReturnRepository{
		cache: c,
	}
}

// Create appends ret to its order's returns once check accepts the existing ones.
func (r *RedisReturnRepository) Create(ctx context.Context, ret *domain.Return, check func(existing []domain.Return) error) error {
	listKey, indexKey := OrderReturnsKey(ret.OrderID), ReturnIndexKey(ret.ID)

	err := r.cache.Transaction(ctx, []string{listKey, indexKey}, func(current map[string][]byte) (map[string][]byte, error) {
		if _, ok := current[indexKey]; ok {
			return nil, fmt.Errorf("return %s already exists", ret.ID)
		}

		existing, err := decodeReturns(current[listKey])
		if err != nil {
			return nil, err
		}
		if err := check(existing); err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(append(existing, *ret))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal returns: %w", err)
		}
		return map[string][]byte{
			listKey:  encoded,
			indexKey: []byte(ret.OrderID),
		}, nil
	})
	if errors.Is(err, cache.ErrConflict) {
		return fmt.Errorf("%w: order %s", domain.ErrConcurrentModification, ret.OrderID)
	}
	return err
}

// Get retrieves a return through the id index.
func (r *RedisReturnRepository) Get(ctx context.Context, returnID string) (*domain.Return, error) {
	orderID, err := r.orderOf(ctx, returnID)
	if err != nil {
		return nil, err
	}

	returns, err := r.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range returns {
		if returns[i].ID == returnID {
			return &returns[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
}

// ListByOrder returns the order's returns in creation order.
func (r *RedisReturnRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Return, error) {
	data, err := r.cache.Get(ctx, OrderReturnsKey(orderID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return []domain.Return{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get returns: %w", err)
	}
	return decodeReturns(data)
}

// Update applies fn under optimistic locking of the order's returns.
func (r *RedisReturnRepository) Update(ctx context.Context, returnID string, fn func(ret *domain.Return) error) (*domain.Return, error) {
	orderID, err := r.orderOf(ctx, returnID)
	if err != nil {
		return nil, err
	}
	listKey := OrderReturnsKey(orderID)
	var updated *domain.Return

	err = r.cache.Transaction(ctx, []string{listKey}, func(current map[string][]byte) (map[string][]byte, error) {
		returns, err := decodeReturns(current[listKey])
		if err != nil {
			return nil, err
		}

		idx := -1
		for i := range returns {
			if returns[i].ID == returnID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
		}

		if err := fn(&returns[idx]); err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal returns: %w", err)
		}
		ret := returns[idx]
		updated = &ret
		return map[string][]byte{listKey: encoded}, nil
	})
	if errors.Is(err, cache.ErrConflict) {
		return nil, fmt.Errorf("%w: return %s", domain.ErrConcurrentModification, returnID)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *RedisReturnRepository) orderOf(ctx context.Context, returnID string) (string, error) {
	data, err := r.cache.Get(ctx, ReturnIndexKey(returnID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get return index: %w", err)
	}
	return string(data), nil
}

func decodeReturns(data []byte) ([]domain.Return, error) {
	if data == nil {
		return []domain.Return{}, nil
	}
	var returns []domain.Return
	if err := json.Unmarshal(data, &returns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal returns: %w", err)
	}
	return returns, nil
}
