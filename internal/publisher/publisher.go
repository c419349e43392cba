// Package publisher forwards order mutation events from the change feed to
// Kafka for downstream consumers (reporting, notification workers).
package publisher

import (
	"context"
	"encoding/json"
	"log"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Topic is the Kafka topic order events land on.
const Topic = "order-events"

// Writer is the slice of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds the production Kafka writer.
func NewWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

// Publisher bridges the in-process orders feed to Kafka.
type Publisher struct {
	bus    bus.Bus
	writer Writer
}

func New(b bus.Bus, w Writer) *Publisher {
	return &Publisher{bus: b, writer: w}
}

// Run consumes the orders topic until ctx is cancelled. If the bus drops the
// subscription (overflow), it resubscribes; delivery downstream is
// at-least-once either way.
func (p *Publisher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		sub, err := p.bus.Subscribe(ctx, domain.TopicOrders, bus.All)
		if err != nil {
			log.Printf("publisher: failed to subscribe: %v", err)
			return
		}
		for ev := range sub.C {
			p.forward(ctx, ev)
		}
	}
}

func (p *Publisher) forward(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("publisher: failed to marshal event seq=%d: %v", ev.Seq, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.EntityID), // order id, keeps per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_op", Value: []byte(ev.Op)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("publisher: failed to write event seq=%d: %v", ev.Seq, err)
	}
}
