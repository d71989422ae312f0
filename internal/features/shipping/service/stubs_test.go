package service

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fulfillment-engine/internal/core/cache"
	carriers "fulfillment-engine/internal/features/carriers/domain"
	carrierports "fulfillment-engine/internal/features/carriers/ports"
	carrierservice "fulfillment-engine/internal/features/carriers/service"
	orderadapters "fulfillment-engine/internal/features/orders/adapters"
	orders "fulfillment-engine/internal/features/orders/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// stubGateway is a configurable CarrierGateway that counts its calls.
type stubGateway struct {
	code         string
	rates        []carriers.Rate
	rateErr      error
	delay        time.Duration
	label        *carriers.PurchasedLabel
	labelErr     error
	events       []carriers.TrackingEvent
	eventsErr    error
	labelCalls   atomic.Int32
	lastLabelReq carriers.LabelRequest
	mu           sync.Mutex
}

func (s *stubGateway) Code() string { return s.code }

func (s *stubGateway) SupportsCarrier(name string) bool { return name == s.code }

func (s *stubGateway) GetRates(ctx context.Context, req carriers.RateRequest) ([]carriers.Rate, error) {
	if s.delay > 0 {
		// Ignores ctx on purpose to model a carrier that hangs.
		time.Sleep(s.delay)
	}
	return s.rates, s.rateErr
}

func (s *stubGateway) PurchaseLabel(ctx context.Context, req carriers.LabelRequest) (*carriers.PurchasedLabel, error) {
	s.labelCalls.Add(1)
	s.mu.Lock()
	s.lastLabelReq = req
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.labelErr != nil {
		return nil, s.labelErr
	}
	return s.label, nil
}

func (s *stubGateway) GetTrackingEvents(ctx context.Context, trackingNumber string) ([]carriers.TrackingEvent, error) {
	return s.events, s.eventsErr
}

func registry(gateways ...*stubGateway) *carrierservice.Registry {
	list := make([]carrierports.CarrierGateway, 0, len(gateways))
	for _, g := range gateways {
		list = append(list, g)
	}
	return carrierservice.NewRegistry(list)
}

func rate(id, service, amount string, days int) carriers.Rate {
	return carriers.Rate{
		ID:            id,
		ServiceCode:   service,
		ServiceName:   service,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		EstimatedDays: days,
	}
}

func testBuilder() *ShipmentBuilder {
	return NewShipmentBuilder(carriers.Address{
		Name:    "Fulfillment Center",
		Street1: "1 Padre Blvd",
		City:    "South Padre Island",
		State:   "TX",
		Zip:     "78597",
		Country: "US",
	}, 8)
}

func testOrder(id string, status orders.OrderStatus) *orders.Order {
	return &orders.Order{
		ID:          id,
		OrderNumber: "LP-" + id,
		Status:      status,
		Customer:    orders.Customer{Name: "Jane Doe", Email: "jane@example.com"},
		ShippingAddress: carriers.Address{
			Street1: "100 Gulf Blvd",
			City:    "Corpus Christi",
			State:   "TX",
			Zip:     "78401",
			Country: "US",
		},
		Items: []orders.OrderItem{
			{ID: "line-1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
			{ID: "line-2", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		},
		Subtotal: decimal.NewFromInt(40),
		Total:    decimal.RequireFromString("45.25"),
	}
}

func newStore(t *testing.T) (cache.Cache, *orderadapters.RedisOrderRepository) {
	t.Helper()
	mr := miniredis.RunT(t)

	adapter, err := cache.NewRedisAdapter("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	return adapter, orderadapters.NewRedisOrderRepository(adapter)
}

// interleavingCache runs hook inside transactions watching key, after the
// watched values are read and before the commit, so the commit sees a conflict.
type interleavingCache struct {
	cache.Cache
	key   string
	every bool
	hook  func()
	fired atomic.Int32
}

func (c *interleavingCache) Transaction(ctx context.Context, keys []string, fn cache.TxFunc) error {
	if !slices.Contains(keys, c.key) {
		return c.Cache.Transaction(ctx, keys, fn)
	}
	return c.Cache.Transaction(ctx, keys, func(current map[string][]byte) (map[string][]byte, error) {
		if c.every || c.fired.Load() == 0 {
			c.fired.Add(1)
			c.hook()
		}
		return fn(current)
	})
}
