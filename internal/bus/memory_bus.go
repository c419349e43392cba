package bus

import (
	"context"
	"sync"
	"time"

	"github.com/dquispe/tienda/internal/domain"
)

// MemoryBus is the in-process change propagator for a single storefront
// instance. Each subscriber has a bounded buffered channel; a full buffer
// drops that subscriber only, publish never blocks.
type MemoryBus struct {
	mu         sync.Mutex
	seq        uint64
	subs       map[domain.Topic]map[*memorySub]struct{}
	bufferSize int
	closed     bool
}

type memorySub struct {
	ch     chan domain.Event
	filter Filter
}

// NewMemoryBus creates a bus with the default per-subscriber buffer.
func NewMemoryBus() *MemoryBus {
	return NewMemoryBusSize(DefaultBufferSize)
}

// NewMemoryBusSize creates a bus with a custom per-subscriber buffer.
func NewMemoryBusSize(bufferSize int) *MemoryBus {
	return &MemoryBus{
		subs:       make(map[domain.Topic]map[*memorySub]struct{}),
		bufferSize: bufferSize,
	}
}

// Publish assigns the next sequence number and fans the event out. Sequence
// assignment and enqueueing happen under one lock so every subscriber sees
// updates to the same entity in commit order.
func (b *MemoryBus) Publish(_ context.Context, topic domain.Topic, ev domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.seq++
	ev.Seq = b.seq
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	for sub := range b.subs[topic] {
		if !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is too far behind; disconnect it instead of
			// stalling everyone else. It must resubscribe.
			delete(b.subs[topic], sub)
			close(sub.ch)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The subscription ends when ctx is
// cancelled or Close is called.
func (b *MemoryBus) Subscribe(ctx context.Context, topic domain.Topic, filter Filter) (*Subscription, error) {
	if filter == nil {
		filter = All
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &memorySub{
		ch:     make(chan domain.Event, b.bufferSize),
		filter: filter,
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.unsubscribe(topic, sub)
		})
	}

	stop := context.AfterFunc(ctx, cancel)
	return &Subscription{
		C: sub.ch,
		cancel: func() {
			stop()
			cancel()
		},
	}, nil
}

func (b *MemoryBus) unsubscribe(topic domain.Topic, sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[topic][sub]; exists {
		delete(b.subs[topic], sub)
		close(sub.ch)
	}
}

// Close shuts the bus down and ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
