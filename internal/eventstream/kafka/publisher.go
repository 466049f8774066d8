// Package kafka publishes usage events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"modelgate/internal/eventstream"
)

const defaultBatchTimeout = 100 * time.Millisecond

// Config holds the Kafka destination of usage events.
type Config struct {
	Brokers []string
	Topic   string
}

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes usage events asynchronously. Delivery failures are logged;
// they never reach the request that produced the event.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a publisher writing to cfg.Topic.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: defaultBatchTimeout,
		Async:        true,
		Completion: func(messages []kafkago.Message, err error) {
			if err != nil {
				logger.Warn("usage events not delivered", "count", len(messages), "topic", cfg.Topic, "error", err)
			}
		},
	}

	return newPublisher(writer, logger), nil
}

func newPublisher(writer messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

// PublishUsage enqueues event keyed by its request id.
func (p *Publisher) PublishUsage(ctx context.Context, event *eventstream.UsageEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.RequestID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write usage event: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
