package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/bamanh2802/bookingcar/pkg/logger"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Handler processes one message. Errors are logged; offsets are still committed.
type Handler func(ctx context.Context, msg *Message) error

// ConsumerConfig holds consumer group settings
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
	Topics   []string
}

// Consumer polls a consumer group and dispatches records to a Handler
type Consumer struct {
	client *kgo.Client
	log    *logger.Logger
}

// NewConsumer joins the consumer group with manual offset commits
func NewConsumer(cfg *ConsumerConfig, log *logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka: at least one topic is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer: %w", err)
	}

	return &Consumer{client: client, log: log}, nil
}

// Run polls until ctx is cancelled or the client is closed
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Error("kafka fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err),
			)
		})

		fetches.EachRecord(func(rec *kgo.Record) {
			msg := fromRecord(rec)
			if err := handle(ctx, msg); err != nil {
				c.log.Error("kafka handler failed",
					zap.String("topic", msg.Topic),
					zap.String("key", msg.Key),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("kafka commit failed", zap.Error(err))
		}
	}
}

// Close leaves the group and closes the client
func (c *Consumer) Close() {
	c.client.Close()
}
