package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisBus propagates events over Redis pub/sub so that several storefront
// instances share one change feed. Sequence numbers come from a shared INCR
// counter, which keeps them monotonic across instances; per-entity order
// still holds because each row is mutated by one request at a time and
// published after commit.
type RedisBus struct {
	client     *redis.Client
	prefix     string
	bufferSize int
}

// NewRedisBus creates a bus on the given client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{
		client:     client,
		prefix:     "tienda",
		bufferSize: DefaultBufferSize,
	}
}

func (b *RedisBus) channel(topic domain.Topic) string {
	return fmt.Sprintf("%s:events:%s", b.prefix, topic)
}

func (b *RedisBus) seqKey() string {
	return fmt.Sprintf("%s:events:seq", b.prefix)
}

// Publish assigns the next shared sequence number and broadcasts the event.
func (b *RedisBus) Publish(ctx context.Context, topic domain.Topic, ev domain.Event) error {
	seq, err := b.client.Incr(ctx, b.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	ev.Seq = uint64(seq)
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel(topic), data).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe bridges a Redis subscription into a bounded local channel with
// the same disconnect-on-overflow policy as the in-process bus.
func (b *RedisBus) Subscribe(ctx context.Context, topic domain.Topic, filter Filter) (*Subscription, error) {
	if filter == nil {
		filter = All
	}

	ps := b.client.Subscribe(ctx, b.channel(topic))
	// Force the subscription to be established before returning, so events
	// published right after Subscribe are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan domain.Event, b.bufferSize)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("redis bus: dropping malformed event: %v", err)
				continue
			}
			if !filter(ev) {
				continue
			}
			select {
			case out <- ev:
			default:
				// Slow subscriber; drop it like the memory bus does.
				_ = ps.Close()
				return
			}
		}
	}()

	stop := context.AfterFunc(ctx, func() { _ = ps.Close() })
	return &Subscription{
		C: out,
		cancel: func() {
			stop()
			_ = ps.Close()
		},
	}, nil
}

// Close releases the underlying client connection. Open subscriptions end
// when the client closes.
func (b *RedisBus) Close() error {
	return b.client.Close()
}
