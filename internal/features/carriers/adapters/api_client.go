package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fulfillment-engine/internal/core/metrics"
	"fulfillment-engine/internal/features/carriers/domain"
)

// Operation names used in errors and metrics.
const (
	opRates    = "rates"
	opLabel    = "label"
	opTracking = "tracking"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// apiClient is the JSON-over-HTTP plumbing shared by the carrier adapters.
type apiClient struct {
	carrier string
	baseURL string
	client  *http.Client
	// authorize decorates every request with the carrier's credentials.
	authorize func(req *http.Request)
	// parseError extracts the carrier's error code and message from an error body.
	parseError func(body []byte) (code, message string)
	// isAddressError reports whether a 4xx error body is an address rejection.
	isAddressError func(code, message string) bool
}

// call performs one request and decodes the 2xx body into out.
// Transport failures, timeouts, 429 and 5xx are ErrCarrierUnavailable;
// other 4xx become clientErr unless the carrier flags an address problem.
func (c *apiClient) call(ctx context.Context, operation, method, path string, body, out any, clientErr error) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCarrierCall(c.carrier, operation, start, err)
	}()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return c.fail(operation, clientErr, "", "", fmt.Errorf("failed to marshal request: %w", mErr))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, reader)
	if err != nil {
		return c.fail(operation, clientErr, "", "", fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(operation, domain.ErrCarrierUnavailable, "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// A garbled success response is treated as a transient carrier fault.
			return c.fail(operation, domain.ErrCarrierUnavailable, "", "", fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, message := strconv.Itoa(resp.StatusCode), strings.TrimSpace(string(raw))
	if c.parseError != nil {
		if pc, pm := c.parseError(raw); pc != "" || pm != "" {
			code, message = pc, pm
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return c.fail(operation, domain.ErrCarrierUnavailable, code, message, fmt.Errorf("http status %d", resp.StatusCode))
	case c.isAddressError != nil && c.isAddressError(code, message):
		return c.fail(operation, domain.ErrAddressInvalid, code, message, nil)
	default:
		return c.fail(operation, clientErr, code, message, fmt.Errorf("http status %d", resp.StatusCode))
	}
}

func (c *apiClient) fail(operation string, kind error, code, message string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		kind = domain.ErrCarrierUnavailable
	}
	return &domain.CarrierError{
		Carrier:   c.carrier,
		Operation: operation,
		Kind:      kind,
		Code:      code,
		Message:   message,
		Err:       cause,
	}
}

func decodeErrorBody(body []byte, out any) error {
	if len(body) == 0 {
		return errors.New("empty error body")
	}
	return json.Unmarshal(body, out)
}

// poundsFromOunces converts to pounds rounded up to a tenth, never below 0.1 lb.
func poundsFromOunces(oz float64) float64 {
	lb := math.Ceil(oz/16*10) / 10
	if lb < 0.1 {
		return 0.1
	}
	return lb
}

// zip5 trims a ZIP+4 to its five digit prefix.
func zip5(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) > 5 {
		return zip[:5]
	}
	return zip
}

// joinLocation renders the non-empty location parts as "City, ST 12345".
func joinLocation(city, state, postal string) string {
	place := strings.TrimSpace(city)
	region := strings.TrimSpace(strings.TrimSpace(state) + " " + strings.TrimSpace(postal))
	switch {
	case place == "":
		return region
	case region == "":
		return place
	default:
		return place + ", " + region
	}
}
