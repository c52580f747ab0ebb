package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const defaultCommitTimeout = 5 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads checkpoint reports from one topic with at-least-once delivery:
// an offset is committed only once the handler has accepted its message.
type Consumer struct {
	r             messageReader
	commitTimeout time.Duration
}

// NewConsumer joins groupID on topic. A group that has no committed offsets
// starts from the oldest retained message, so reports published before the
// first deploy are still ingested. Without a group the reader is pinned to
// partition 0 and commits are not available.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.FirstOffset,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, commitTimeout: defaultCommitTimeout}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume runs handler for each message in order until fetching fails, handler
// fails, or a commit fails. A failed message stays uncommitted and is delivered
// again after a restart.
//
// The commit of a handled message is not bound to ctx: the checkpoint is already
// stored, and dropping the commit on shutdown would only replay it.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, msg kafka.Message) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := handler(ctx, msg); err != nil {
			return errors.Wrapf(err, "handle message %s/%d offset %d", msg.Topic, msg.Partition, msg.Offset)
		}
		if err := c.commit(ctx, msg); err != nil {
			return errors.Wrapf(err, "commit message %s/%d offset %d", msg.Topic, msg.Partition, msg.Offset)
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()
	return c.r.CommitMessages(ctx, msg)
}
