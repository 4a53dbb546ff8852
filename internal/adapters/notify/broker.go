// Package notify fans change notifications out to subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tarelay/pkg/metrics"
)

const defaultBufferSize = 16

// Change describes one successfully reconciled packet.
type Change struct {
	PacketID string    `json:"packet_id"`
	Kind     string    `json:"kind"`
	From     string    `json:"from,omitempty"`
	At       time.Time `json:"at"`
}

// Broker delivers every published Change to every subscriber. A subscriber
// that falls behind loses changes rather than blocking the publisher.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Change
	nextID uint64
	closed bool

	bufferSize int
}

// Option applies a configuration option to the Broker.
type Option func(*Broker)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{subs: make(map[uint64]chan Change), bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber. The returned cancel func unsubscribes and
// closes the channel; it is also called when ctx is done.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Change, func()) {
	ch := make(chan Change, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	n := len(b.subs)
	b.mu.Unlock()
	metrics.UpdateSubscribers(n)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			n := len(b.subs)
			b.mu.Unlock()
			metrics.UpdateSubscribers(n)
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}
}

// Publish delivers c to every subscriber without blocking.
func (b *Broker) Publish(_ context.Context, c Change) {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
			metrics.RecordNotificationDropped()
		}
	}
	metrics.RecordNotificationPublished()
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone. Later subscriptions get a closed channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	metrics.UpdateSubscribers(0)
}
