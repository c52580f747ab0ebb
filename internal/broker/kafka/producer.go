package kafka

import (
	"context"

	"github.com/BearBump/OrderTrack/pkg/retrier"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Producer struct {
	w     messageWriter
	retry *retrier.Retrier
}

func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, retry: retrier.New(retrier.DefaultConfig())}
}

// WithRetry overrides the publish retry policy.
func (p *Producer) WithRetry(cfg retrier.Config) *Producer {
	p.retry = retrier.New(cfg)
	return p
}

// Publish writes one message, retrying transient broker errors.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: headers,
	}
	err := p.retry.ExecuteWithContext(ctx, func(ctx context.Context) error {
		return p.w.WriteMessages(ctx, msg)
	})
	if err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (p *Producer) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
