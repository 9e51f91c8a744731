package kafka

import (
	"context"
	"time"

	"github.com/mes-platform/route-execution-service/pkg/cloudevents"
	"github.com/mes-platform/route-execution-service/pkg/logging"
	"github.com/mes-platform/route-execution-service/pkg/metrics"
)

// InstrumentedProducer wraps Producer with metrics and logging
type InstrumentedProducer struct {
	producer *Producer
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewInstrumentedProducer creates a new instrumented producer
func NewInstrumentedProducer(producer *Producer, m *metrics.Metrics, logger *logging.Logger) *InstrumentedProducer {
	return &InstrumentedProducer{
		producer: producer,
		metrics:  m,
		logger:   logger.WithComponent("kafka-producer"),
	}
}

// PublishEvent publishes a CloudEvent and records publish metrics
func (p *InstrumentedProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.MESCloudEvent) error {
	start := time.Now()
	err := p.producer.PublishEvent(ctx, topic, event)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, event.Type, err == nil, duration)
	}

	if err != nil {
		p.logger.WithError(err).Error("Failed to publish event",
			"topic", topic,
			"eventType", event.Type,
			"eventId", event.ID,
		)
		return err
	}

	p.logger.Debug("Published event",
		"topic", topic,
		"eventType", event.Type,
		"eventId", event.ID,
		"durationMs", duration.Milliseconds(),
	)
	return nil
}

// Close closes the underlying producer
func (p *InstrumentedProducer) Close() error {
	return p.producer.Close()
}
