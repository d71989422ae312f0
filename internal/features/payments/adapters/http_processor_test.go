package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fulfillment-engine/internal/features/payments/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProcessor_Capture(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "LP-1234ABCD", r.Header.Get("Idempotency-Key"))

		var body chargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(4525), body.Amount)
		assert.Equal(t, "usd", body.Currency)
		assert.Equal(t, "tok_visa", body.Source)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ch_123","status":"succeeded"}`))
	}))
	defer server.Close()

	processor := NewHTTPProcessor(server.URL+"/", "sk_test", server.Client())
	id, err := processor.Capture(context.Background(), decimal.RequireFromString("45.25"), "LP-1234ABCD", "tok_visa")

	require.NoError(t, err)
	assert.Equal(t, "ch_123", id)
}

func TestHTTPProcessor_Refund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)
		assert.Equal(t, "ret-1", r.Header.Get("Idempotency-Key"))

		var body refundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ch_123", body.Charge)
		assert.Equal(t, int64(2000), body.Amount)

		w.Write([]byte(`{"id":"re_456","status":"succeeded"}`))
	}))
	defer server.Close()

	processor := NewHTTPProcessor(server.URL, "sk_test", server.Client())
	id, err := processor.Refund(context.Background(), "ch_123", decimal.NewFromInt(20), "ret-1")

	require.NoError(t, err)
	assert.Equal(t, "re_456", id)
}

func TestHTTPProcessor_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      error
		code      string
		retryable bool
	}{
		{
			name:   "declined",
			status: http.StatusPaymentRequired,
			body:   `{"error":{"code":"card_declined","message":"Your card was declined."}}`,
			kind:   domain.ErrPaymentDeclined,
			code:   "card_declined",
		},
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			body:      `upstream down`,
			kind:      domain.ErrPaymentUnavailable,
			code:      "502",
			retryable: true,
		},
		{
			name:      "throttled",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"code":"rate_limit","message":"slow down"}}`,
			kind:      domain.ErrPaymentUnavailable,
			code:      "rate_limit",
			retryable: true,
		},
		{
			name:   "already refunded",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":"charge_already_refunded","message":"Charge has already been refunded."}}`,
			kind:   domain.ErrPaymentDeclined,
			code:   "charge_already_refunded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			processor := NewHTTPProcessor(server.URL, "sk_test", server.Client())
			_, err := processor.Refund(context.Background(), "ch_123", decimal.NewFromInt(20), "ret-1")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))

			var paymentErr *domain.PaymentError
			require.ErrorAs(t, err, &paymentErr)
			assert.Equal(t, tt.code, paymentErr.Code)
		})
	}
}

func TestHTTPProcessor_FailedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ch_999","status":"failed"}`))
	}))
	defer server.Close()

	processor := NewHTTPProcessor(server.URL, "sk_test", server.Client())
	_, err := processor.Capture(context.Background(), decimal.NewFromInt(10), "LP-1", "tok_visa")
	assert.ErrorIs(t, err, domain.ErrPaymentDeclined)
}

func TestHTTPProcessor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"id":"ch_late","status":"succeeded"}`))
	}))
	defer server.Close()

	client := server.Client()
	client.Timeout = 20 * time.Millisecond

	processor := NewHTTPProcessor(server.URL, "sk_test", client)
	_, err := processor.Capture(context.Background(), decimal.NewFromInt(10), "LP-1", "tok_visa")

	assert.ErrorIs(t, err, domain.ErrPaymentUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(4525), cents(decimal.RequireFromString("45.25")))
	assert.Equal(t, int64(1000), cents(decimal.NewFromInt(10)))
	assert.Equal(t, int64(13), cents(decimal.RequireFromString("0.125")))
}
