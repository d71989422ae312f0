package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"fulfillment-engine/internal/features/fulfillment/domain"
	"fulfillment-engine/internal/features/fulfillment/service"
	orders "fulfillment-engine/internal/features/orders/domain"
	returns "fulfillment-engine/internal/features/returns/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockFulfillment is a mock implementation of Fulfillment.
type mockFulfillment struct {
	mock.Mock
}

func (m *mockFulfillment) result(args mock.Arguments) error {
	return args.Error(len(args) - 1)
}

func (m *mockFulfillment) PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error) {
	args := m.Called(req)
	order, _ := args.Get(0).(*orders.Order)
	return order, m.result(args)
}

func (m *mockFulfillment) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	args := m.Called(orderID)
	order, _ := args.Get(0).(*orders.Order)
	return order, m.result(args)
}

func (m *mockFulfillment) GetRatesForOrder(ctx context.Context, orderID string) (*shipping.RateQuote, error) {
	args := m.Called(orderID)
	quote, _ := args.Get(0).(*shipping.RateQuote)
	return quote, m.result(args)
}

func (m *mockFulfillment) PurchaseAndAttachLabel(ctx context.Context, orderID, rateID string) (*service.LabelPurchase, error) {
	args := m.Called(orderID, rateID)
	purchase, _ := args.Get(0).(*service.LabelPurchase)
	return purchase, m.result(args)
}

func (m *mockFulfillment) VoidLabel(ctx context.Context, orderID, actor string) (*shipping.ShippingLabel, error) {
	args := m.Called(orderID, actor)
	label, _ := args.Get(0).(*shipping.ShippingLabel)
	return label, m.result(args)
}

func (m *mockFulfillment) ActiveLabel(ctx context.Context, orderID string) (*shipping.ShippingLabel, error) {
	args := m.Called(orderID)
	label, _ := args.Get(0).(*shipping.ShippingLabel)
	return label, m.result(args)
}

func (m *mockFulfillment) RefreshOrderTracking(ctx context.Context, orderID string) (*tracking.Timeline, error) {
	args := m.Called(orderID)
	timeline, _ := args.Get(0).(*tracking.Timeline)
	return timeline, m.result(args)
}

func (m *mockFulfillment) OrderTimeline(ctx context.Context, orderID string) (*tracking.Timeline, error) {
	args := m.Called(orderID)
	timeline, _ := args.Get(0).(*tracking.Timeline)
	return timeline, m.result(args)
}

func (m *mockFulfillment) SetOrderStatus(ctx context.Context, orderID, status string, meta orders.TransitionMetadata) (*orders.Order, error) {
	args := m.Called(orderID, status, meta)
	order, _ := args.Get(0).(*orders.Order)
	return order, m.result(args)
}

func (m *mockFulfillment) BulkSetOrderStatus(ctx context.Context, orderIDs []string, status string, meta orders.TransitionMetadata) (*domain.BulkOutcome, error) {
	args := m.Called(orderIDs, status, meta)
	outcome, _ := args.Get(0).(*domain.BulkOutcome)
	return outcome, m.result(args)
}

func (m *mockFulfillment) OpenReturn(ctx context.Context, req returns.CreateReturnRequest) (*returns.Return, error) {
	args := m.Called(req)
	ret, _ := args.Get(0).(*returns.Return)
	return ret, m.result(args)
}

func (m *mockFulfillment) GetReturn(ctx context.Context, returnID string) (*returns.Return, error) {
	args := m.Called(returnID)
	ret, _ := args.Get(0).(*returns.Return)
	return ret, m.result(args)
}

func (m *mockFulfillment) OrderReturns(ctx context.Context, orderID string) ([]returns.Return, error) {
	args := m.Called(orderID)
	list, _ := args.Get(0).([]returns.Return)
	return list, m.result(args)
}

func (m *mockFulfillment) AdvanceReturn(ctx context.Context, returnID, status string, meta returns.TransitionMetadata) (*returns.Return, error) {
	args := m.Called(returnID, status, meta)
	ret, _ := args.Get(0).(*returns.Return)
	return ret, m.result(args)
}

func (m *mockFulfillment) InspectReturn(ctx context.Context, returnID string, inspections []returns.Inspection) (*returns.Return, error) {
	args := m.Called(returnID, inspections)
	ret, _ := args.Get(0).(*returns.Return)
	return ret, m.result(args)
}

func newTestApp(f Fulfillment) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	NewFulfillmentHandler(f).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body interface{}, out interface{}) int {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, target, &payload)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestFulfillmentHandler_GetOrder(t *testing.T) {
	f := new(mockFulfillment)
	f.On("GetOrder", "o1").Return(&orders.Order{ID: "o1", Status: orders.OrderStatusPending}, nil)
	app := newTestApp(f)

	var order orders.Order
	status := doJSON(t, app, "GET", "/orders/o1", nil, &order)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "o1", order.ID)
}

func TestFulfillmentHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *domain.Error
		status int
	}{
		{"not found", &domain.Error{Code: domain.CodeNotFound, Message: "order not found"}, fiber.StatusNotFound},
		{"invalid transition", &domain.Error{Code: domain.CodeInvalidTransition, Message: "terminal"}, fiber.StatusConflict},
		{"carrier down", &domain.Error{Code: domain.CodeCarrierUnavailable, Message: "timeout", Retryable: true}, fiber.StatusServiceUnavailable},
		{"no rates retryable", &domain.Error{Code: domain.CodeNoRatesAvailable, Message: "none", Retryable: true}, fiber.StatusServiceUnavailable},
		{"no rates permanent", &domain.Error{Code: domain.CodeNoRatesAvailable, Message: "none"}, fiber.StatusUnprocessableEntity},
		{"internal", &domain.Error{Code: domain.CodeInternal, Message: "internal error"}, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := new(mockFulfillment)
			f.On("GetRatesForOrder", "o1").Return(nil, tt.err)
			app := newTestApp(f)

			var resp ErrorResponse
			status := doJSON(t, app, "GET", "/orders/o1/rates", nil, &resp)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.err.Code, resp.Code)
			assert.Equal(t, tt.err.Message, resp.Message)
			assert.Equal(t, tt.err.Retryable, resp.Retryable)
			assert.Equal(t, "test-ray-id", resp.RayID)
		})
	}
}

func TestFulfillmentHandler_SetStatus(t *testing.T) {
	f := new(mockFulfillment)
	meta := orders.TransitionMetadata{Actor: "staff@store.test", Carrier: "ups", TrackingNumber: "1Z999"}
	f.On("SetOrderStatus", "o1", "SHIPPED", meta).Return(&orders.Order{ID: "o1", Status: orders.OrderStatusShipped}, nil)
	app := newTestApp(f)

	body := map[string]string{
		"status":          "SHIPPED",
		"actor":           "staff@store.test",
		"carrier":         "ups",
		"tracking_number": "1Z999",
	}
	var order orders.Order
	status := doJSON(t, app, "POST", "/orders/o1/status", body, &order)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, orders.OrderStatusShipped, order.Status)
	f.AssertExpectations(t)
}

func TestFulfillmentHandler_BulkSetStatus(t *testing.T) {
	f := new(mockFulfillment)
	ids := []string{"o1", "o2"}
	meta := orders.TransitionMetadata{Actor: "staff"}
	f.On("BulkSetOrderStatus", ids, "CANCELLED", meta).Return(&domain.BulkOutcome{
		UpdatedCount: 1,
		FailedCount:  1,
		Updated:      []string{"o1"},
		Failures:     []domain.ItemFailure{{OrderID: "o2", Code: domain.CodeInvalidTransition, Reason: "shipped"}},
	}, nil)
	app := newTestApp(f)

	body := map[string]interface{}{"order_ids": ids, "status": "CANCELLED", "actor": "staff"}
	var outcome domain.BulkOutcome
	status := doJSON(t, app, "POST", "/orders/bulk/status", body, &outcome)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, outcome.FailedCount)
	assert.Equal(t, domain.CodeInvalidTransition, outcome.Failures[0].Code)
}

func TestFulfillmentHandler_PurchaseLabel(t *testing.T) {
	f := new(mockFulfillment)
	f.On("PurchaseAndAttachLabel", "o1", "ups:03").Return(&service.LabelPurchase{
		Label: &shipping.ShippingLabel{ID: "l1", OrderID: "o1"},
		Order: &orders.Order{ID: "o1", ShippingLabelID: "l1"},
	}, nil)
	app := newTestApp(f)

	var purchase service.LabelPurchase
	status := doJSON(t, app, "POST", "/orders/o1/label", LabelRequest{RateID: "ups:03"}, &purchase)

	assert.Equal(t, fiber.StatusCreated, status)
	require.NotNil(t, purchase.Label)
	assert.Equal(t, "l1", purchase.Label.ID)
}

func TestFulfillmentHandler_VoidLabel(t *testing.T) {
	f := new(mockFulfillment)
	f.On("VoidLabel", "o1", "ops@store.test").Return(&shipping.ShippingLabel{ID: "l1"}, nil)
	app := newTestApp(f)

	status := doJSON(t, app, "DELETE", "/orders/o1/label?actor=ops@store.test", nil, nil)

	assert.Equal(t, fiber.StatusOK, status)
	f.AssertExpectations(t)
}

func TestFulfillmentHandler_RefreshTracking_Warning(t *testing.T) {
	f := new(mockFulfillment)
	f.On("RefreshOrderTracking", "o1").Return(&tracking.Timeline{
		OrderID: "o1",
		Warning: &tracking.RefreshWarning{Code: tracking.WarningTrackingUnavailable, Message: "ups down", Retryable: true},
	}, nil)
	app := newTestApp(f)

	var timeline tracking.Timeline
	status := doJSON(t, app, "POST", "/orders/o1/tracking/refresh", nil, &timeline)

	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, timeline.Warning)
	assert.True(t, timeline.Warning.Retryable)
}

func TestFulfillmentHandler_Returns(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		f := new(mockFulfillment)
		req := returns.CreateReturnRequest{
			OrderID: "o1",
			Items:   []returns.ItemRequest{{OrderItemID: "line-1", Quantity: 1}},
			Reason:  returns.ReasonDefective,
		}
		f.On("OpenReturn", req).Return(&returns.Return{ID: "r1", Status: returns.ReturnStatusPending}, nil)
		app := newTestApp(f)

		var ret returns.Return
		status := doJSON(t, app, "POST", "/returns", req, &ret)

		assert.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, "r1", ret.ID)
	})

	t.Run("refund failure", func(t *testing.T) {
		f := new(mockFulfillment)
		f.On("AdvanceReturn", "r1", "REFUNDED", returns.TransitionMetadata{Actor: "staff"}).
			Return(nil, &domain.Error{Code: domain.CodeRefundFailed, Message: "declined", Retryable: true})
		app := newTestApp(f)

		var resp ErrorResponse
		status := doJSON(t, app, "POST", "/returns/r1/status", map[string]string{"status": "REFUNDED", "actor": "staff"}, &resp)

		assert.Equal(t, fiber.StatusBadGateway, status)
		assert.Equal(t, domain.CodeRefundFailed, resp.Code)
		assert.True(t, resp.Retryable)
	})

	t.Run("inspection", func(t *testing.T) {
		f := new(mockFulfillment)
		inspections := []returns.Inspection{{ItemID: "ri-1", Condition: "like new", Restockable: true}}
		f.On("InspectReturn", "r1", inspections).Return(&returns.Return{ID: "r1", Status: returns.ReturnStatusInspecting}, nil)
		app := newTestApp(f)

		status := doJSON(t, app, "POST", "/returns/r1/inspection", InspectionRequest{Inspections: inspections}, nil)

		assert.Equal(t, fiber.StatusOK, status)
		f.AssertExpectations(t)
	})
}

func TestFulfillmentHandler_InvalidBody(t *testing.T) {
	f := new(mockFulfillment)
	app := newTestApp(f)

	req := httptest.NewRequest("POST", "/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidRequest, body.Code)
	f.AssertNotCalled(t, "PlaceOrder", mock.Anything)
}
