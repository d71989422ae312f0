package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fulfillment-engine/internal/core/logger"
	carriers "fulfillment-engine/internal/features/carriers/domain"
	carrierports "fulfillment-engine/internal/features/carriers/ports"
	orders "fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/shipping/domain"
	"fulfillment-engine/internal/features/shipping/ports"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RateBroker shops every configured carrier concurrently.
type RateBroker struct {
	carriers ports.CarrierDirectory
	builder  *ShipmentBuilder
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRateBroker creates a RateBroker. timeout bounds each carrier individually.
func NewRateBroker(directory ports.CarrierDirectory, builder *ShipmentBuilder, timeout time.Duration) *RateBroker {
	return &RateBroker{
		carriers: directory,
		builder:  builder,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.Named("rates"),
	}
}

// ShopRates quotes the order with every carrier and merges the rates in
// provider order. Failing carriers are omitted and listed as unavailable; the
// call only fails when no carrier returns a rate.
func (b *RateBroker) ShopRates(ctx context.Context, order *orders.Order) (*domain.RateQuote, error) {
	req := b.builder.Build(order)
	gateways := b.carriers.All()

	results := make([][]carriers.Rate, len(gateways))
	errs := make([]error, len(gateways))

	var g errgroup.Group
	for i, gateway := range gateways {
		g.Go(func() error {
			results[i], errs[i] = b.quote(ctx, gateway, req)
			return nil
		})
	}
	_ = g.Wait()

	quote := &domain.RateQuote{
		OrderID:  order.ID,
		Rates:    make([]carriers.Rate, 0),
		QuotedAt: b.now().UTC(),
	}
	var failed []error
	for i, gateway := range gateways {
		if errs[i] != nil {
			b.logger.Warn("Carrier omitted from rate quote",
				zap.String("order_id", order.ID),
				zap.String("carrier", gateway.Code()),
				zap.Error(errs[i]),
			)
			quote.Unavailable = append(quote.Unavailable, failure(gateway.Code(), errs[i]))
			failed = append(failed, errs[i])
			continue
		}
		for _, rate := range results[i] {
			rate.ID = carriers.ComposeRateID(gateway.Code(), rate.ID)
			rate.Provider = gateway.Code()
			quote.Rates = append(quote.Rates, rate)
		}
	}

	if len(quote.Rates) == 0 {
		return nil, &domain.NoRatesError{
			OrderID:  order.ID,
			Failures: quote.Unavailable,
			Errs:     failed,
		}
	}

	b.logger.Info("Rates quoted",
		zap.String("order_id", order.ID),
		zap.Int("rates", len(quote.Rates)),
		zap.Int("unavailable", len(quote.Unavailable)),
	)
	return quote, nil
}

// quote calls one gateway under its own deadline. A gateway that ignores the
// context is abandoned when the deadline passes.
func (b *RateBroker) quote(ctx context.Context, gateway carrierports.CarrierGateway, req carriers.RateRequest) ([]carriers.Rate, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		rates []carriers.Rate
		err   error
	}
	done := make(chan result, 1)
	go func() {
		rates, err := gateway.GetRates(callCtx, req)
		done <- result{rates: rates, err: err}
	}()

	select {
	case res := <-done:
		return res.rates, res.err
	case <-callCtx.Done():
		return nil, &carriers.CarrierError{
			Carrier:   gateway.Code(),
			Operation: "rates",
			Kind:      carriers.ErrCarrierUnavailable,
			Message:   fmt.Sprintf("no response within %s", b.timeout),
			Err:       callCtx.Err(),
		}
	}
}

func failure(carrier string, err error) domain.CarrierFailure {
	f := domain.CarrierFailure{
		Carrier:   carrier,
		Reason:    err.Error(),
		Retryable: carriers.IsRetryable(err),
	}
	switch {
	case errors.Is(err, carriers.ErrCarrierUnavailable):
		f.Code = domain.FailureCarrierUnavailable
	case errors.Is(err, carriers.ErrAddressInvalid):
		f.Code = domain.FailureAddressInvalid
	default:
		f.Code = domain.FailureRateUnavailable
	}
	return f
}
