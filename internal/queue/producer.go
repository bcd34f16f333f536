package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is anything that can be routed onto a partition and sanity-checked before writing.
type Message interface {
	Key() string
	Validate() error
}

// Producer wraps a Kafka writer.
type Producer struct {
	w *kafka.Writer
}

// NewProducer configures the writer for durability:
// Hash balancer keeps one key on one partition so per-order ordering holds,
// RequireAll waits for the ISR, MaxAttempts/WriteTimeout bound retries.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			MaxAttempts:            5,
			WriteTimeout:           5 * time.Second,
			ReadTimeout:            5 * time.Second,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Close flushes and releases the writer.
func (p *Producer) Close() error { return p.w.Close() }

// Publish synchronously writes one message, keyed by msg.Key().
func (p *Producer) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Key()),
		Value: b,
		Time:  time.Now(),
	})
}
