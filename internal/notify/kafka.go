package notify

import (
	"context"

	"store_api/internal/queue"
)

// KafkaPublisher appends events to the durable order-event topic.
type KafkaPublisher struct {
	producer *queue.Producer
}

func NewKafkaPublisher(p *queue.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

func (k *KafkaPublisher) Emit(ctx context.Context, ev Event) error {
	return k.producer.Publish(ctx, ev)
}
