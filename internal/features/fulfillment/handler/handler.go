package handler

import (
	"context"
	"errors"
	"net/http"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/fulfillment/domain"
	"fulfillment-engine/internal/features/fulfillment/service"
	orders "fulfillment-engine/internal/features/orders/domain"
	returns "fulfillment-engine/internal/features/returns/domain"
	shipping "fulfillment-engine/internal/features/shipping/domain"
	tracking "fulfillment-engine/internal/features/tracking/domain"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Fulfillment is the operation set exposed over HTTP. *service.Orchestrator implements it.
type Fulfillment interface {
	PlaceOrder(ctx context.Context, req orders.PlaceOrderRequest) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	GetRatesForOrder(ctx context.Context, orderID string) (*shipping.RateQuote, error)
	PurchaseAndAttachLabel(ctx context.Context, orderID, rateID string) (*service.LabelPurchase, error)
	VoidLabel(ctx context.Context, orderID, actor string) (*shipping.ShippingLabel, error)
	ActiveLabel(ctx context.Context, orderID string) (*shipping.ShippingLabel, error)
	RefreshOrderTracking(ctx context.Context, orderID string) (*tracking.Timeline, error)
	OrderTimeline(ctx context.Context, orderID string) (*tracking.Timeline, error)
	SetOrderStatus(ctx context.Context, orderID, status string, meta orders.TransitionMetadata) (*orders.Order, error)
	BulkSetOrderStatus(ctx context.Context, orderIDs []string, status string, meta orders.TransitionMetadata) (*domain.BulkOutcome, error)
	OpenReturn(ctx context.Context, req returns.CreateReturnRequest) (*returns.Return, error)
	GetReturn(ctx context.Context, returnID string) (*returns.Return, error)
	OrderReturns(ctx context.Context, orderID string) ([]returns.Return, error)
	AdvanceReturn(ctx context.Context, returnID, status string, meta returns.TransitionMetadata) (*returns.Return, error)
	InspectReturn(ctx context.Context, returnID string, inspections []returns.Inspection) (*returns.Return, error)
}

// FulfillmentHandler handles HTTP requests for orders, labels, tracking and returns.
type FulfillmentHandler struct {
	fulfillment Fulfillment
}

// NewFulfillmentHandler creates a new FulfillmentHandler.
func NewFulfillmentHandler(fulfillment Fulfillment) *FulfillmentHandler {
	return &FulfillmentHandler{fulfillment: fulfillment}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Code is the machine-readable error classification.
	Code domain.Code `json:"code"`
	// Message is the error description.
	Message string `json:"message"`
	// Retryable tells the client the same request may succeed later.
	Retryable bool `json:"retryable"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// LabelRequest selects the quoted rate to buy.
type LabelRequest struct {
	RateID string `json:"rate_id"`
}

// StatusRequest moves an order to a new status.
type StatusRequest struct {
	Status string `json:"status"`
	orders.TransitionMetadata
}

// BulkStatusRequest moves many orders to the same status.
type BulkStatusRequest struct {
	OrderIDs []string `json:"order_ids"`
	Status   string   `json:"status"`
	orders.TransitionMetadata
}

// ReturnStatusRequest moves a return to a new status.
type ReturnStatusRequest struct {
	Status string `json:"status"`
	returns.TransitionMetadata
}

// InspectionRequest records inspected item conditions.
type InspectionRequest struct {
	Inspections []returns.Inspection `json:"inspections"`
}

var statusByCode = map[domain.Code]int{
	domain.CodeInvalidRequest:      http.StatusBadRequest,
	domain.CodePaymentFailed:       http.StatusPaymentRequired,
	domain.CodeNotFound:            http.StatusNotFound,
	domain.CodeInvalidTransition:   http.StatusConflict,
	domain.CodeLabelAlreadyExists:  http.StatusConflict,
	domain.CodeConflict:            http.StatusConflict,
	domain.CodeNotReturnable:       http.StatusUnprocessableEntity,
	domain.CodeRateUnavailable:     http.StatusUnprocessableEntity,
	domain.CodeNoRatesAvailable:    http.StatusUnprocessableEntity,
	domain.CodeAddressInvalid:      http.StatusUnprocessableEntity,
	domain.CodeTrackingUnavailable: http.StatusUnprocessableEntity,
	domain.CodeDiscountRejected:    http.StatusUnprocessableEntity,
	domain.CodeLabelPurchaseFailed: http.StatusBadGateway,
	domain.CodeRefundFailed:        http.StatusBadGateway,
	domain.CodeCarrierUnavailable:  http.StatusServiceUnavailable,
	domain.CodeInternal:            http.StatusInternalServerError,
}

// Register mounts every route on router.
func (h *FulfillmentHandler) Register(router fiber.Router) {
	router.Post("/orders", h.PlaceOrder)
	router.Post("/orders/bulk/status", h.BulkSetStatus)
	router.Get("/orders/:id", h.GetOrder)
	router.Post("/orders/:id/status", h.SetStatus)
	router.Get("/orders/:id/rates", h.GetRates)
	router.Get("/orders/:id/label", h.GetLabel)
	router.Post("/orders/:id/label", h.PurchaseLabel)
	router.Delete("/orders/:id/label", h.VoidLabel)
	router.Post("/orders/:id/tracking/refresh", h.RefreshTracking)
	router.Get("/orders/:id/timeline", h.GetTimeline)
	router.Get("/orders/:id/returns", h.ListReturns)
	router.Post("/returns", h.OpenReturn)
	router.Get("/returns/:id", h.GetReturn)
	router.Post("/returns/:id/status", h.AdvanceReturn)
	router.Post("/returns/:id/inspection", h.InspectReturn)
}

// PlaceOrder godoc
// @Summary Place an order
// @Description Captures payment and creates a PENDING order from a completed checkout
// @Tags orders
// @Accept json
// @Produce json
// @Param request body orders.PlaceOrderRequest true "Checkout"
// @Success 201 {object} orders.Order
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /orders [post]
func (h *FulfillmentHandler) PlaceOrder(c *fiber.Ctx) error {
	var req orders.PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	order, err := h.fulfillment.PlaceOrder(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// GetOrder godoc
// @Summary Get an order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} orders.Order
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *FulfillmentHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.fulfillment.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// SetStatus godoc
// @Summary Change an order status
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} orders.Order
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/status [post]
func (h *FulfillmentHandler) SetStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	order, err := h.fulfillment.SetOrderStatus(c.UserContext(), c.Params("id"), req.Status, req.TransitionMetadata)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(order)
}

// BulkSetStatus godoc
// @Summary Change the status of many orders
// @Description Each order is transitioned independently; failures are reported per order
// @Tags orders
// @Accept json
// @Produce json
// @Param request body BulkStatusRequest true "Orders and target status"
// @Success 200 {object} domain.BulkOutcome
// @Failure 400 {object} ErrorResponse
// @Router /orders/bulk/status [post]
func (h *FulfillmentHandler) BulkSetStatus(c *fiber.Ctx) error {
	var req BulkStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	outcome, err := h.fulfillment.BulkSetOrderStatus(c.UserContext(), req.OrderIDs, req.Status, req.TransitionMetadata)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(outcome)
}

// GetRates godoc
// @Summary Shop carrier rates for an order
// @Tags shipping
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} shipping.RateQuote
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /orders/{id}/rates [get]
func (h *FulfillmentHandler) GetRates(c *fiber.Ctx) error {
	quote, err := h.fulfillment.GetRatesForOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(quote)
}

// GetLabel godoc
// @Summary Get the active shipping label
// @Tags shipping
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} shipping.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/label [get]
func (h *FulfillmentHandler) GetLabel(c *fiber.Ctx) error {
	label, err := h.fulfillment.ActiveLabel(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// PurchaseLabel godoc
// @Summary Buy a shipping label
// @Description Buys the label for a quoted rate and attaches it to the order. At most one label is active per order.
// @Tags shipping
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body LabelRequest true "Quoted rate"
// @Success 201 {object} service.LabelPurchase
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /orders/{id}/label [post]
func (h *FulfillmentHandler) PurchaseLabel(c *fiber.Ctx) error {
	var req LabelRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	purchase, err := h.fulfillment.PurchaseAndAttachLabel(c.UserContext(), c.Params("id"), req.RateID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(purchase)
}

// VoidLabel godoc
// @Summary Void the active shipping label
// @Tags shipping
// @Produce json
// @Param id path string true "Order ID"
// @Param actor query string false "Who voids the label"
// @Success 200 {object} shipping.ShippingLabel
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /orders/{id}/label [delete]
func (h *FulfillmentHandler) VoidLabel(c *fiber.Ctx) error {
	label, err := h.fulfillment.VoidLabel(c.UserContext(), c.Params("id"), c.Query("actor", "staff"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(label)
}

// RefreshTracking godoc
// @Summary Refresh carrier tracking
// @Description Replaces the stored carrier events. On carrier failure the cached timeline is returned with a warning.
// @Tags tracking
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} tracking.Timeline
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /orders/{id}/tracking/refresh [post]
func (h *FulfillmentHandler) RefreshTracking(c *fiber.Ctx) error {
	timeline, err := h.fulfillment.RefreshOrderTracking(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(timeline)
}

// GetTimeline godoc
// @Summary Get the order timeline
// @Tags tracking
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} tracking.Timeline
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/timeline [get]
func (h *FulfillmentHandler) GetTimeline(c *fiber.Ctx) error {
	timeline, err := h.fulfillment.OrderTimeline(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(timeline)
}

// ListReturns godoc
// @Summary List the returns of an order
// @Tags returns
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {array} returns.Return
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id}/returns [get]
func (h *FulfillmentHandler) ListReturns(c *fiber.Ctx) error {
	list, err := h.fulfillment.OrderReturns(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(list)
}

// OpenReturn godoc
// @Summary Open a return
// @Tags returns
// @Accept json
// @Produce json
// @Param request body returns.CreateReturnRequest true "Return request"
// @Success 201 {object} returns.Return
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /returns [post]
func (h *FulfillmentHandler) OpenReturn(c *fiber.Ctx) error {
	var req returns.CreateReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	ret, err := h.fulfillment.OpenReturn(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ret)
}

// GetReturn godoc
// @Summary Get a return
// @Tags returns
// @Produce json
// @Param id path string true "Return ID"
// @Success 200 {object} returns.Return
// @Failure 404 {object} ErrorResponse
// @Router /returns/{id} [get]
func (h *FulfillmentHandler) GetReturn(c *fiber.Ctx) error {
	ret, err := h.fulfillment.GetReturn(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ret)
}

// AdvanceReturn godoc
// @Summary Change a return status
// @Description Moving to REFUNDED issues the refund through the payment processor first
// @Tags returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body ReturnStatusRequest true "Target status"
// @Success 200 {object} returns.Return
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /returns/{id}/status [post]
func (h *FulfillmentHandler) AdvanceReturn(c *fiber.Ctx) error {
	var req ReturnStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	ret, err := h.fulfillment.AdvanceReturn(c.UserContext(), c.Params("id"), req.Status, req.TransitionMetadata)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ret)
}

// InspectReturn godoc
// @Summary Record item inspections
// @Tags returns
// @Accept json
// @Produce json
// @Param id path string true "Return ID"
// @Param request body InspectionRequest true "Inspections"
// @Success 200 {object} returns.Return
// @Failure 409 {object} ErrorResponse
// @Router /returns/{id}/inspection [post]
func (h *FulfillmentHandler) InspectReturn(c *fiber.Ctx) error {
	var req InspectionRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}

	ret, err := h.fulfillment.InspectReturn(c.UserContext(), c.Params("id"), req.Inspections)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(ret)
}

func (h *FulfillmentHandler) badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Code:    domain.CodeInvalidRequest,
		Message: message,
		RayID:   rayID(c),
	})
}

func (h *FulfillmentHandler) fail(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{
		Code:    domain.CodeInternal,
		Message: "internal error",
		RayID:   rayID(c),
	}

	var fe *domain.Error
	if errors.As(err, &fe) {
		resp.Code = fe.Code
		resp.Message = fe.Message
		resp.Retryable = fe.Retryable
	}

	status, ok := statusByCode[resp.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if resp.Code == domain.CodeNoRatesAvailable && resp.Retryable {
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		logger.Get().Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("code", string(resp.Code)),
			zap.String("ray_id", resp.RayID),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(resp)
}

func rayID(c *fiber.Ctx) string {
	id, ok := c.Locals("requestid").(string)
	if !ok {
		return "unknown"
	}
	return id
}
