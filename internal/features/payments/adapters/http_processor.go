package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"
	"fulfillment-engine/internal/features/payments/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	opCapture = "capture"
	opRefund  = "refund"

	maxErrorBody = 4096
)

// HTTPProcessor talks to a Stripe-style payments REST API. Amounts travel as
// integer cents and every call carries an Idempotency-Key.
type HTTPProcessor struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPProcessor creates a new HTTPProcessor.
func NewHTTPProcessor(baseURL, apiKey string, client *http.Client) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		currency: "usd",
		client:   client,
		logger:   logger.Named("payments"),
	}
}

type chargeRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Source    string `json:"source"`
	Reference string `json:"reference"`
}

type refundRequest struct {
	Charge string `json:"charge"`
	Amount int64  `json:"amount"`
}

type objectResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Capture charges amount to source and returns the charge id.
// reference (the order number) doubles as the idempotency key.
func (p *HTTPProcessor) Capture(ctx context.Context, amount decimal.Decimal, reference, source string) (string, error) {
	body := chargeRequest{
		Amount:    cents(amount),
		Currency:  p.currency,
		Source:    source,
		Reference: reference,
	}

	var resp objectResponse
	if err := p.call(ctx, opCapture, "/v1/charges", reference, body, &resp); err != nil {
		return "", err
	}
	if resp.Status == "failed" {
		return "", &domain.PaymentError{Operation: opCapture, Kind: domain.ErrPaymentDeclined, Message: "charge failed"}
	}

	p.logger.Info("Payment captured",
		zap.String("reference", reference),
		zap.String("charge_id", resp.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return resp.ID, nil
}

// Refund returns amount of a previous charge and returns the refund id.
func (p *HTTPProcessor) Refund(ctx context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	body := refundRequest{
		Charge: transactionID,
		Amount: cents(amount),
	}

	var resp objectResponse
	if err := p.call(ctx, opRefund, "/v1/refunds", idempotencyKey, body, &resp); err != nil {
		return "", err
	}
	if resp.Status == "failed" || resp.Status == "canceled" {
		return "", &domain.PaymentError{Operation: opRefund, Kind: domain.ErrPaymentDeclined, Message: "refund " + resp.Status}
	}

	p.logger.Info("Refund issued",
		zap.String("charge_id", transactionID),
		zap.String("refund_id", resp.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return resp.ID, nil
}

// call posts body and decodes the 2xx response. 429, 5xx and transport errors
// are ErrPaymentUnavailable; other 4xx are ErrPaymentDeclined.
func (p *HTTPProcessor) call(ctx context.Context, operation, path, idempotencyKey string, body, out any) (err error) {
	defer func() {
		metrics.PaymentRequestsTotal.WithLabelValues(operation, metrics.Outcome(err)).Inc()
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return p.fail(operation, domain.ErrPaymentDeclined, "", "", fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return p.fail(operation, domain.ErrPaymentDeclined, "", "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(operation, domain.ErrPaymentUnavailable, "", "", err)
	}
	defer resp.Body.Close()

	p.logger.Debug("Payment processor responded",
		zap.String("operation", operation),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return p.fail(operation, domain.ErrPaymentUnavailable, "", "", fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, message := strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(raw))
	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && (parsed.Error.Code != "" || parsed.Error.Message != "") {
		code, message = parsed.Error.Code, parsed.Error.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return p.fail(operation, domain.ErrPaymentUnavailable, code, message, fmt.Errorf("http status %d", resp.StatusCode))
	}
	return p.fail(operation, domain.ErrPaymentDeclined, code, message, fmt.Errorf("http status %d", resp.StatusCode))
}

func (p *HTTPProcessor) fail(operation string, kind error, code, message string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		kind = domain.ErrPaymentUnavailable
	}
	return &domain.PaymentError{
		Operation: operation,
		Kind:      kind,
		Code:      code,
		Message:   message,
		Err:       cause,
	}
}

// cents converts a dollar amount to integer cents, rounding half away from zero.
func cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
