package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Property-Price-Platform/pkg/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Discard drops every event. It stands in for kafka when events are disabled.
type Discard struct{}

func (Discard) Publish(context.Context, kafka.Event) error        { return nil }
func (Discard) PublishBatch(context.Context, []kafka.Event) error { return nil }

// Collector buffers events and publishes them in batches, either when the
// buffer reaches batchSize or every flushInterval. Track never blocks on the
// broker.
type Collector struct {
	publisher     Publisher
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	started       bool
	done          chan struct{}
}

// NewCollector creates a Collector. Non-positive arguments fall back to 100
// events and 5 seconds.
func NewCollector(publisher Publisher, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "event-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop, which runs until ctx is cancelled and then
// performs a final flush.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("event collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers event. A full batch is flushed in the background.
func (c *Collector) Track(event kafka.Event) {
	c.mu.Lock()
	c.buffer = append(c.buffer, event)
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to exit.
func (c *Collector) Close() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

// BufferLen returns the number of events waiting to be published.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)

		// Requeue ahead of newer events, capped at three batches.
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if limit := c.batchSize * 3; len(c.buffer) > limit {
			dropped := len(c.buffer) - limit
			c.buffer = c.buffer[:limit]
			c.logger.Warn("event buffer overflow, events dropped", "dropped", dropped)
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}

// Notifier publishes pipeline lifecycle events synchronously. Failures are
// logged and never fail the pipeline.
type Notifier struct {
	training  Publisher
	promotion Publisher
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. Nil publishers discard.
func NewNotifier(training, promotion Publisher) *Notifier {
	if training == nil {
		training = Discard{}
	}
	if promotion == nil {
		promotion = Discard{}
	}
	return &Notifier{
		training:  training,
		promotion: promotion,
		logger:    slog.Default().With("component", "event-notifier"),
	}
}

// TrainingFinished publishes e.
func (n *Notifier) TrainingFinished(ctx context.Context, e TrainingEvent) {
	if err := n.training.Publish(ctx, Training(e)); err != nil {
		n.logger.Warn("training event not published", "run_id", e.RunID, "error", err)
	}
}

// Promoted publishes e.
func (n *Notifier) Promoted(ctx context.Context, e PromotionEvent) {
	if err := n.promotion.Publish(ctx, Promotion(e)); err != nil {
		n.logger.Warn("promotion event not published", "run_id", e.RunID, "error", err)
	}
}
