package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// Broadcaster fans verdicts out to in-process subscribers.
// It implements ports.VerdictSink; slow subscribers lose messages instead of
// blocking the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan domain.VerdictEvent]struct{}
	buffer      int
	logger      *slog.Logger
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold buffer events.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		subscribers: make(map[chan domain.VerdictEvent]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a subscriber until ctx is done, then closes its channel.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan domain.VerdictEvent, error) {
	ch := make(chan domain.VerdictEvent, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Publish delivers the verdict to every subscriber.
func (b *Broadcaster) Publish(ctx context.Context, event domain.VerdictEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logger.Warn("verdict subscriber buffer full, dropping event", "trace_id", event.TraceID)
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
