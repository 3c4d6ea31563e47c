// Package kafka carries analytics events over segmentio/kafka-go. Producer
// writes JSON values; Consumer reads them in a consumer group and commits
// each message after its handler succeeds.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/config"
)

// MessageHandler processes one message. Returning an error skips the commit
// so the message is redelivered after a rebalance or restart.
type MessageHandler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	handle  MessageHandler
	log     *slog.Logger
	closing sync.Once
	closed  error
}

func NewConsumer(cfg config.KafkaConfig, topic string, handle MessageHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.ConsumerGroup,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10 << 20,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.LastOffset,
		}),
		handle: handle,
		log:    slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start blocks, handling messages until ctx ends. Fetch errors back off for
// up to five seconds before the next attempt. The reader is closed on return.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.Close()
	c.log.Info("consuming", "group", c.reader.Config().GroupID)

	pause := 100 * time.Millisecond
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			c.log.Info("consumer stopped")
			return nil
		case err != nil:
			c.log.Error("fetch failed", "error", err, "retry_in", pause)
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return nil
			}
			pause = min(pause*2, 5*time.Second)
			continue
		}
		pause = 100 * time.Millisecond
		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)
	if err := c.handle(ctx, msg.Key, msg.Value); err != nil {
		log.Error("handler failed", "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("commit failed", "error", err)
	}
}

// Close is idempotent.
func (c *Consumer) Close() error {
	c.closing.Do(func() { c.closed = c.reader.Close() })
	return c.closed
}

// DecodeJSON decodes a message value into a T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("kafka message is not a %T: %w", v, err)
	}
	return v, nil
}
