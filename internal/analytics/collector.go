package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/organizerlabs/smart-search-organizer/pkg/kafka"
)

// Tracker accepts usage events. Handlers always hold a Tracker; when Kafka is
// disabled it is a Noop.
type Tracker interface {
	Track(eventType string, payload any)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Track(string, any) {}

// Collector buffers events in memory and flushes them to Kafka when the
// buffer reaches batchSize or after flushInterval, whichever comes first.
type Collector struct {
	producer      *kafka.Producer
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []kafka.Event

	done chan struct{}
}

// NewCollector creates a Collector publishing through producer.
func NewCollector(producer *kafka.Producer, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		producer:      producer,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop; it runs until ctx is cancelled,
// then performs a final flush with a short deadline.
func (c *Collector) Start(ctx context.Context) {
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
	c.logger.Info("analytics collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track buffers one event. A full buffer triggers an asynchronous flush so
// request handlers never wait on Kafka.
func (c *Collector) Track(eventType string, payload any) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: eventType, Value: payload})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		go c.flush(context.Background())
	}
}

// Close waits for the flush loop started by Start to finish.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the number of events waiting to be flushed.
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

	if err := c.producer.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("flush failed", "events", len(batch), "error", err)
		// Requeue, bounded so repeated broker failures cannot grow the
		// buffer without limit.
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		limit := c.batchSize * 3
		if len(c.buffer) > limit {
			c.logger.Warn("buffer overflow, dropping oldest events",
				"dropped", len(c.buffer)-limit)
			c.buffer = c.buffer[:limit]
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("flushed", "events", len(batch))
}
