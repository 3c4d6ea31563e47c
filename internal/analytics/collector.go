package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/kafka"
)

// publishTimeout bounds each delivery, including those made while draining.
const publishTimeout = 5 * time.Second

// Publisher delivers one event. *kafka.Producer and *Aggregator satisfy it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector decouples request handlers from event delivery: Track only
// enqueues, and one goroutine publishes in arrival order.
type Collector struct {
	publisher Publisher
	events    chan any
	dropped   atomic.Int64
	log       *slog.Logger

	mu     sync.RWMutex // guards closing events against concurrent Track
	closed bool
	done   chan struct{}
}

// NewCollector buffers up to bufferSize events (10000 when <= 0).
func NewCollector(publisher Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		events:    make(chan any, bufferSize),
		log:       slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start publishes queued events until Close is called or ctx ends. Either
// way the queue is drained before the loop exits.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			c.stop()
		case <-c.done:
		}
	}()
	go func() {
		defer close(c.done)
		base := context.WithoutCancel(ctx)
		for event := range c.events {
			c.publish(base, event)
		}
	}()
	c.log.Info("collector started", "buffer", cap(c.events))
}

// Track enqueues event without blocking. It is dropped when the queue is
// full or the collector has stopped.
func (c *Collector) Track(event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- event:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.log.Warn("queue full, dropping events", "dropped_total", n)
		}
	}
}

// Dropped reports how many events Track has discarded on a full queue.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops intake and waits until every queued event was published.
func (c *Collector) Close() {
	c.stop()
	<-c.done
}

func (c *Collector) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

func (c *Collector) publish(base context.Context, event any) {
	ctx, cancel := context.WithTimeout(base, publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, kafka.Event{Key: eventKey(event), Value: event}); err != nil {
		c.log.Error("publish failed", "error", err)
	}
}
