// Package kafka carries pipeline and prediction events over segmentio/kafka-go.
// Producers write JSON values with an event-type header; consumers decode the
// header and hand each message to a MessageHandler.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/resilience"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// ErrMalformed marks a message that can never be processed. The consumer
// commits it without retrying.
var ErrMalformed = errors.New("malformed kafka message")

// Message is the decoded view of a Kafka record passed to handlers.
type Message struct {
	Topic string
	Key   []byte
	Type  string
	Value []byte
}

type MessageHandler func(ctx context.Context, msg Message) error

// ConsumerStats counts messages since the consumer started.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
}

// Consumer reads the given topics as part of a consumer group. A handler
// error is retried a few times; after that, or at once for ErrMalformed, the
// message is logged, counted as dropped and committed so one bad record
// cannot stall the partition.
type Consumer struct {
	reader    *kafka.Reader
	handler   MessageHandler
	retry     resilience.RetryConfig
	logger    *slog.Logger
	processed atomic.Int64
	dropped   atomic.Int64
}

func NewConsumer(cfg config.KafkaConfig, topics []string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupTopics:    topics,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second},
		logger:  slog.Default().With("component", "kafka-consumer", "topics", topics),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Warn("closing reader", "error", err)
		}
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}

		if err := c.dispatch(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.dropped.Add(1)
			c.logger.Error("dropping message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else {
			c.processed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) error {
	decoded := fromKafka(msg)
	return resilience.Retry(ctx, "handle "+msg.Topic, c.retry, func(ctx context.Context) error {
		err := c.handler(ctx, decoded)
		if errors.Is(err, ErrMalformed) {
			return resilience.Permanent(err)
		}
		return err
	})
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Processed: c.processed.Load(), Dropped: c.dropped.Load()}
}

func fromKafka(msg kafka.Message) Message {
	out := Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	for _, h := range msg.Headers {
		if h.Key == typeHeader {
			out.Type = string(h.Value)
		}
	}
	return out
}

// DecodeJSON unmarshals a message value into T. Failures wrap ErrMalformed.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return result, nil
}
