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
	"fulfillment-engine/internal/features/orders/domain"
	"fulfillment-engine/internal/features/orders/ports"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderPlacedPayload is published once an order is stored.
type OrderPlacedPayload struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"item_count"`
}

// CheckoutService turns a completed checkout into a PENDING order.
type CheckoutService struct {
	repo                ports.OrderRepository
	discounts           ports.DiscountValidator
	payments            ports.PaymentCapturer
	timeline            ports.TimelineRecorder
	publisher           events.Publisher
	conservationPercent decimal.Decimal
	now                 func() time.Time
	logger              *zap.Logger
}

// NewCheckoutService creates a CheckoutService pledging conservationPercent of every subtotal.
func NewCheckoutService(
	repo ports.OrderRepository,
	discounts ports.DiscountValidator,
	payments ports.PaymentCapturer,
	timeline ports.TimelineRecorder,
	publisher events.Publisher,
	conservationPercent float64,
) *CheckoutService {
	return &CheckoutService{
		repo:                repo,
		discounts:           discounts,
		payments:            payments,
		timeline:            timeline,
		publisher:           publisher,
		conservationPercent: decimal.NewFromFloat(conservationPercent),
		now:                 time.Now,
		logger:              logger.Named("checkout"),
	}
}

// PlaceOrder validates the cart, applies the discount, captures payment and stores the order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.Order, error) {
	if err := validatePlaceOrder(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     newOrderNumber(),
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		Items:           make([]domain.OrderItem, 0, len(req.Items)),
		Shipping:        req.Shipping,
		Tax:             req.Tax,
		Discount:        decimal.Zero,
		ShippingMethod:  req.ShippingMethod,
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.ShippingAddress.Name == "" {
		order.ShippingAddress.Name = req.Customer.Name
	}

	subtotal := decimal.Zero
	for _, line := range req.Items {
		item := domain.OrderItem{
			ID:        uuid.NewString(),
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		subtotal = subtotal.Add(item.LineTotal())
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotal

	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		application, err := s.discounts.Validate(ctx, code, subtotal, req.Customer.ID)
		if err != nil {
			if errors.Is(err, domain.ErrDiscountRejected) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to validate discount code: %w", err)
		}
		order.DiscountCode = application.Code
		order.Discount = application.AmountFor(subtotal, req.Shipping)
	}

	order.Total = Total(order.Subtotal, order.Discount, order.Shipping, order.Tax)
	order.ConservationDonation = subtotal.Mul(s.conservationPercent).Div(decimal.NewFromInt(100)).Round(2)

	if order.Total.IsPositive() {
		txID, err := s.payments.Capture(ctx, order.Total, order.OrderNumber, req.PaymentSource)
		if err != nil {
			s.logger.Warn("Payment capture failed",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
		}
		order.PaymentTransactionID = txID
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("Order not stored after payment capture",
			zap.String("order_number", order.OrderNumber),
			zap.String("transaction_id", order.PaymentTransactionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to store order: %w", err)
	}
	metrics.OrdersPlacedTotal.Inc()

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.Total.StringFixed(2)),
	)

	if s.timeline != nil {
		err := s.timeline.RecordEvent(ctx, order.ID, tracking.InternalEvent{
			OccurredAt:  now,
			Actor:       "customer",
			Kind:        tracking.KindOrderPlaced,
			Description: "order placed",
			OrderStatus: string(order.Status),
		})
		if err != nil {
			s.logger.Warn("Failed to record timeline event", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, events.New(events.OrderPlaced, order.ID, OrderPlacedPayload{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			CustomerEmail: order.Customer.Email,
			Total:         order.Total,
			ItemCount:     order.TotalQuantity(),
		}))
		if err != nil {
			s.logger.Warn("Failed to publish event", zap.String("type", events.OrderPlaced), zap.Error(err))
		}
	}

	return order, nil
}

// Total returns subtotal - discount + shipping + tax, never below zero.
func Total(subtotal, discount, shipping, tax decimal.Decimal) decimal.Decimal {
	total := subtotal.Sub(discount).Add(shipping).Add(tax)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func validatePlaceOrder(req domain.PlaceOrderRequest) error {
	invalid := func(reason string) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidOrder, reason)
	}

	if len(req.Items) == 0 {
		return invalid("at least one item is required")
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			return invalid(fmt.Sprintf("item %d: product_id is required", i))
		}
		if item.Quantity <= 0 {
			return invalid(fmt.Sprintf("item %d: quantity must be positive", i))
		}
		if item.UnitPrice.IsNegative() {
			return invalid(fmt.Sprintf("item %d: unit_price must not be negative", i))
		}
	}
	if strings.TrimSpace(req.Customer.Email) == "" {
		return invalid("customer email is required")
	}
	addr := req.ShippingAddress
	if strings.TrimSpace(addr.Street1) == "" || strings.TrimSpace(addr.City) == "" || strings.TrimSpace(addr.Zip) == "" {
		return invalid("shipping address is incomplete")
	}
	if req.Shipping.IsNegative() || req.Tax.IsNegative() {
		return invalid("shipping and tax must not be negative")
	}
	if strings.TrimSpace(req.PaymentSource) == "" {
		return invalid("payment_source is required")
	}
	return nil
}

// newOrderNumber renders "LP-" plus 8 random uppercase hex characters.
func newOrderNumber() string {
	return "LP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
