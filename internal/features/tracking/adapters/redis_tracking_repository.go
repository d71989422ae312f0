package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/features/tracking/domain"
)

// maxAppendAttempts bounds the optimistic retries of AppendInternal.
const maxAppendAttempts = 5

// CarrierEventsKey holds the carrier snapshot of an order.
func CarrierEventsKey(orderID string) string {
	return "tracking:carrier:" + orderID
}

// InternalEventsKey holds the internal events of an order.
func InternalEventsKey(orderID string) string {
	return "tracking:internal:" + orderID
}

// RedisTrackingRepository implements ports.TrackingRepository on top of the cache adapter.
type RedisTrackingRepository struct {
	cache cache.Cache
}

// NewRedisTrackingRepository creates a new RedisTrackingRepository.
func NewRedisTrackingRepository(c cache.Cache) *RedisTrackingRepository {
	return &RedisTrackingRepository{
		cache: c,
	}
}

// ReplaceCarrierEvents stores the snapshot, replacing any previous one.
func (r *RedisTrackingRepository) ReplaceCarrierEvents(ctx context.Context, snapshot *domain.CarrierSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal tracking snapshot: %w", err)
	}
	if err := r.cache.Set(ctx, CarrierEventsKey(snapshot.OrderID), data, 0); err != nil {
		return fmt.Errorf("failed to save tracking snapshot: %w", err)
	}
	return nil
}

// CarrierSnapshot retrieves the stored snapshot.
func (r *RedisTrackingRepository) CarrierSnapshot(ctx context.Context, orderID string) (*domain.CarrierSnapshot, error) {
	data, err := r.cache.Get(ctx, CarrierEventsKey(orderID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking snapshot: %w", err)
	}

	var snapshot domain.CarrierSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tracking snapshot: %w", err)
	}
	return &snapshot, nil
}

// AppendInternal appends under optimistic locking, retrying on conflict.
func (r *RedisTrackingRepository) AppendInternal(ctx context.Context, orderID string, event domain.InternalEvent) error {
	key := InternalEventsKey(orderID)

	var err error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		err = r.cache.Transaction(ctx, []string{key}, func(current map[string][]byte) (map[string][]byte, error) {
			events, err := decodeInternal(current[key])
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(append(events, event))
			if err != nil {
				return nil, fmt.Errorf("failed to marshal internal events: %w", err)
			}
			return map[string][]byte{key: data}, nil
		})
		if !errors.Is(err, cache.ErrConflict) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to append internal event: %w", err)
	}
	return nil
}

// InternalEvents retrieves the internal events.
func (r *RedisTrackingRepository) InternalEvents(ctx context.Context, orderID string) ([]domain.InternalEvent, error) {
	data, err := r.cache.Get(ctx, InternalEventsKey(orderID))
	if errors.Is(err, cache.ErrKeyNotFound) {
		return []domain.InternalEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get internal events: %w", err)
	}
	return decodeInternal(data)
}

func decodeInternal(data []byte) ([]domain.InternalEvent, error) {
	if len(data) == 0 {
		return []domain.InternalEvent{}, nil
	}
	var events []domain.InternalEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal internal events: %w", err)
	}
	return events, nil
}
