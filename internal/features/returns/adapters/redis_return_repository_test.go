package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/features/returns/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *RedisReturnRepository {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return NewRedisReturnRepository(adapter)
}

func newReturn(id string, qty int) *domain.Return {
	return &domain.Return{
		ID:      id,
		OrderID: "ord-1",
		Status:  domain.ReturnStatusPending,
		Items:   []domain.ReturnItem{{ID: id + "-item", OrderItemID: "line-1", Quantity: qty}},
	}
}

func accept(existing []domain.Return) error { return nil }

func TestRedisReturnRepository_CreateGet(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newReturn("ret-1", 1), accept))
	require.NoError(t, repo.Create(ctx, newReturn("ret-2", 1), func(existing []domain.Return) error {
		assert.Len(t, existing, 1)
		return nil
	}))

	got, err := repo.Get(ctx, "ret-2")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, 1, got.Items[0].Quantity)

	list, err := repo.ListByOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ret-1", list[0].ID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrReturnNotFound)

	err = repo.Create(ctx, newReturn("ret-1", 1), accept)
	assert.Error(t, err)

	empty, err := repo.ListByOrder(ctx, "ord-2")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisReturnRepository_CreateCheckFails(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	rejected := errors.New("over quantity")

	err := repo.Create(ctx, newReturn("ret-1", 5), func(existing []domain.Return) error { return rejected })
	assert.ErrorIs(t, err, rejected)

	_, err = repo.Get(ctx, "ret-1")
	assert.ErrorIs(t, err, domain.ErrReturnNotFound)
}

func TestRedisReturnRepository_ConcurrentCreatesRespectCheck(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	// Two units available, five concurrent one-unit requests.
	check := func(existing []domain.Return) error {
		if domain.ReturnedQuantities(existing)["line-1"] >= 2 {
			return errors.New("nothing left")
		}
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Create(ctx, newReturn("ret-"+string(rune('a'+i)), 1), check)
		}()
	}
	wg.Wait()

	list, err := repo.ListByOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, domain.ReturnedQuantities(list)["line-1"], 2)
}

func TestRedisReturnRepository_Update(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newReturn("ret-1", 1), accept))
	require.NoError(t, repo.Create(ctx, newReturn("ret-2", 1), accept))

	updated, err := repo.Update(ctx, "ret-2", func(ret *domain.Return) error {
		ret.Status = domain.ReturnStatusApproved
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusApproved, updated.Status)

	first, err := repo.Get(ctx, "ret-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusPending, first.Status)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, "ret-1", func(ret *domain.Return) error {
		ret.Status = domain.ReturnStatusCancelled
		return boom
	})
	assert.ErrorIs(t, err, boom)

	first, err = repo.Get(ctx, "ret-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusPending, first.Status)

	_, err = repo.Update(ctx, "missing", func(ret *domain.Return) error { return nil })
	assert.ErrorIs(t, err, domain.ErrReturnNotFound)
}
