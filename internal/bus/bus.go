// Package bus fans out catalog and order mutation events to subscribed
// sessions. Delivery is at-least-once; ordering is only guaranteed per
// entity, so consumers merge by entity id and sequence number.
package bus

import (
	"context"
	"errors"

	"github.com/dquispe/tienda/internal/domain"
)

// ErrClosed is returned when subscribing to a bus that has been shut down.
var ErrClosed = errors.New("bus is closed")

// DefaultBufferSize is the per-subscriber queue depth. A subscriber that
// falls this far behind is dropped rather than allowed to stall the bus.
const DefaultBufferSize = 64

// Filter decides whether a subscriber receives an event.
type Filter func(domain.Event) bool

// All passes every event. Admin sessions subscribe with it.
func All(domain.Event) bool { return true }

// OwnedBy passes only order events belonging to the given customer.
func OwnedBy(customerID string) Filter {
	return func(ev domain.Event) bool {
		return ev.CustomerID == customerID
	}
}

// Subscription is one session's feed. C is closed when the subscription
// ends, whether by Close, context cancellation, or overflow drop.
type Subscription struct {
	C      <-chan domain.Event
	cancel func()
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
}

// Bus is the change propagator. Publish assigns each event a monotonic
// sequence number and never fails because of a slow or dead subscriber.
type Bus interface {
	Publish(ctx context.Context, topic domain.Topic, ev domain.Event) error
	Subscribe(ctx context.Context, topic domain.Topic, filter Filter) (*Subscription, error)
	Close() error
}
