package httpclient

import (
	"net/http"
	"time"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/proxy"

	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound call. Query strings are dropped
// from the logged URL since several carrier APIs take credentials there.
type LoggingRoundTripper struct {
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
}

// RoundTrip executes the request and logs details.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
	}

	logger.Get().Debug("HTTP Request Started", fields...)

	resp, err := lrt.Proxied.RoundTrip(req)

	fields = append(fields, zap.Duration("duration", time.Since(start)))

	if err != nil {
		logger.Get().Error("HTTP Request Failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	fields = append(fields, zap.Int("status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Get().Warn("HTTP Request Completed With Server Error", fields...)
	} else {
		logger.Get().Debug("HTTP Request Completed", fields...)
	}

	return resp, nil
}

// NewClient returns an http.Client with logging middleware.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: http.DefaultTransport,
		},
		Timeout: timeout,
	}
}

// NewProxiedClient returns a logging http.Client that egresses through the
// given proxy. It falls back to a direct client when the proxy is unusable.
func NewProxiedClient(timeout time.Duration, settings proxy.Settings) *http.Client {
	transport, err := settings.Transport()
	if err != nil {
		logger.Get().Warn("Ignoring invalid proxy settings", zap.Error(err))
		return NewClient(timeout)
	}

	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: transport,
		},
		Timeout: timeout,
	}
}
