package analytics

import (
	"context"
	"log/slog"

	"github.com/microtrend-io/microtrend/pkg/kafka"
	"github.com/microtrend-io/microtrend/pkg/logger"
)

// EventPublisher is the producer surface the Collector needs; *kafka.Producer
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector forwards analytics events to Kafka through a buffered channel.
// Track never blocks the request path; events are dropped when the buffer
// is full.
type Collector struct {
	producer EventPublisher
	eventCh  chan any
	done     chan struct{}
	logger   *slog.Logger
}

// NewCollector creates a Collector with the given buffer size.
func NewCollector(producer EventPublisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan any, bufferSize),
		done:     make(chan struct{}),
		logger:   logger.WithComponent("analytics-collector"),
	}
}

// Start launches the publish loop. It drains buffered events on ctx cancel.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, kafka.Event{
					Key:   "analytics",
					Value: event,
				}); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues an event for asynchronous publishing.
func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for the publish loop to finish.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

// drainRemaining flushes everything still buffered in a single batch write.
func (c *Collector) drainRemaining() {
	var remaining []kafka.Event
collect:
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				break collect
			}
			remaining = append(remaining, kafka.Event{Key: "analytics", Value: event})
		default:
			break collect
		}
	}
	if len(remaining) == 0 {
		return
	}
	if err := c.producer.PublishBatch(context.Background(), remaining); err != nil {
		c.logger.Error("failed to publish remaining events",
			"count", len(remaining),
			"error", err,
		)
	}
}
