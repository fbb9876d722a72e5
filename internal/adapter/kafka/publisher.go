package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/config"
	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes discovery events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Publisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates an asynchronous Kafka producer for the configured event
// topic. Delivery failures are logged and counted, never returned to callers.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	p := &Publisher{metrics: metrics, logger: logger}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		Async:                  true,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion:             p.complete,
	}
	return p
}

// Publish enqueues an event. It does not block on the broker.
func (p *Publisher) Publish(ctx context.Context, event domain.DiscoveryEvent) {
	msg, err := serializeToMessage(event)
	if err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		p.logger.Error("serialize discovery event failed", "id", event.ID, "error", err)
		return
	}
	// The request context may end as soon as the response is written.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Inc()
		p.logger.Warn("enqueue discovery event failed", "id", event.ID, "error", err)
	}
}

// complete is the async delivery callback.
func (p *Publisher) complete(messages []kafkago.Message, err error) {
	if err != nil {
		p.metrics.EventsPublished.WithLabelValues("error").Add(float64(len(messages)))
		p.logger.Warn("discovery events not delivered", "count", len(messages), "error", err)
		return
	}
	p.metrics.EventsPublished.WithLabelValues("success").Add(float64(len(messages)))
}

// Close flushes pending events and closes the producer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a DiscoveryEvent into a Kafka message keyed by event ID.
func serializeToMessage(event domain.DiscoveryEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize discovery event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "mode", Value: []byte(event.Mode)},
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
