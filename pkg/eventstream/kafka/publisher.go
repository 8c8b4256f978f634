// Package kafka implements the eventstream publisher over a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/eventstream"
)

// DefaultTopic is the topic operation events publish to.
const DefaultTopic = "obsagent.operations"

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of broker addresses. Required.
	Brokers []string

	// Topic is the destination topic. Defaults to DefaultTopic if empty.
	Topic string
}

// Publisher writes operation events to a Kafka topic, keyed by operation ID
// so all events of one operation land in the same partition.
type Publisher struct {
	writer *kafkago.Writer
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(cfg.Brokers...),
			Topic:    topic,
			Balancer: &kafkago.LeastBytes{},
		},
	}, nil
}

// PublishOperation serializes the event and writes it to the topic.
func (p *Publisher) PublishOperation(ctx context.Context, event *eventstream.OperationEvent) error {
	if event == nil {
		return eventstream.ErrNilOperationEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling operation event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OperationID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing operation event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
