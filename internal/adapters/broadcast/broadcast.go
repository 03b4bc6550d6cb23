// Package broadcast fans out score-change notifications to observers.
// Delivery is fire-and-forget: publishing never blocks the score write
// path, and a slow or stalled observer only loses its own messages.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/pkg/logger"
	"github.com/feisworks/feispoints/pkg/metrics"
)

// ScoreChanged announces that a raw score was written. Observers
// typically react by refreshing the affected round's results.
type ScoreChanged struct {
	RoundID      model.RoundID
	JudgeID      model.JudgeID
	CompetitorID model.CompetitorID
	Value        float64
	At           time.Time
}

// Broadcaster delivers ScoreChanged events to subscribers.
type Broadcaster interface {
	// Subscribe registers an observer and returns its channel plus a
	// cancel function. The channel closes on cancel or broadcaster close.
	Subscribe(ctx context.Context, name string) (<-chan ScoreChanged, func())

	// Publish delivers an event to every subscriber without blocking.
	// Events to a subscriber with a full buffer are dropped.
	Publish(ctx context.Context, ev ScoreChanged)

	// Close shuts down the broadcaster and closes all subscriber channels.
	Close() error
}

// Default broadcaster configuration constants.
const defaultBufferSize = 64

// InMemoryBroadcaster implements Broadcaster over per-observer
// buffered channels.
type InMemoryBroadcaster struct {
	mu         sync.RWMutex
	subs       map[string]chan ScoreChanged
	bufferSize int
	closed     bool
	logger     logger.Logger
}

// Option applies a configuration option to the InMemoryBroadcaster.
type Option func(*InMemoryBroadcaster)

// WithBufferSize sets the per-observer channel buffer.
func WithBufferSize(n int) Option {
	return func(b *InMemoryBroadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *InMemoryBroadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a broadcaster with configuration options.
func New(opts ...Option) *InMemoryBroadcaster {
	b := &InMemoryBroadcaster{
		subs:       make(map[string]chan ScoreChanged),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers an observer under name. Subscribing the same
// name twice replaces the previous subscription.
func (b *InMemoryBroadcaster) Subscribe(_ context.Context, name string) (<-chan ScoreChanged, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.subs[name]; ok {
		close(prev)
	}
	ch := make(chan ScoreChanged, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[name] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[name]; ok && cur == ch {
			delete(b.subs, name)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber. A full observer buffer
// drops the event for that observer only; the others still receive it.
func (b *InMemoryBroadcaster) Publish(ctx context.Context, ev ScoreChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for name, ch := range b.subs {
		select {
		case ch <- ev:
			metrics.RecordBroadcastDelivery()
		default:
			metrics.RecordBroadcastDrop()
			if b.logger != nil {
				b.logger.Debug(ctx, "dropped score-change event for slow observer",
					logger.String("observer", name),
					logger.String("round", string(ev.RoundID)),
				)
			}
		}
	}
}

// Close closes every subscriber channel.
func (b *InMemoryBroadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for name, ch := range b.subs {
		delete(b.subs, name)
		close(ch)
	}
	return nil
}
