package events

import (
	"context"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/metrics"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log. Used when no Kafka brokers are configured.
type LogPublisher struct{}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	metrics.EventsPublishedTotal.WithLabelValues(event.Type, metrics.OutcomeSuccess).Inc()
	logger.Get().Info("Domain event",
		zap.String("type", event.Type),
		zap.String("key", event.Key),
		zap.Time("occurred_at", event.OccurredAt),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
