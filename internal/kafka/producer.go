package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Producer is a thin wrapper around segmentio/kafka-go Writer.
type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same key -> same partition
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{w: w}
}

func (p *Producer) Publish(ctx context.Context, key, payload []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: payload})
}

func (p *Producer) Close() error { return p.w.Close() }
