// Package projection maintains a session's local copy of the catalog and
// order feeds. Events may arrive more than once and, across entities, out of
// creation order; the view merges by entity id and keeps whichever event
// carries the highest sequence number, so a late stale event can never
// revert newer state.
package projection

import (
	"sync"

	"github.com/dquispe/tienda/internal/domain"
)

type entry[T any] struct {
	seq   uint64
	value *T
}

// View is the merged local state built from a change feed.
type View struct {
	mu       sync.RWMutex
	products map[string]entry[domain.Product]
	orders   map[string]entry[domain.Order]
}

// NewView creates an empty view.
func NewView() *View {
	return &View{
		products: make(map[string]entry[domain.Product]),
		orders:   make(map[string]entry[domain.Order]),
	}
}

// Apply merges one event into the view. It returns false when the event was
// discarded as stale, i.e. its sequence number is not newer than the one
// already held for that entity. Deletes are kept as tombstones so a stale
// update cannot resurrect a deleted row.
func (v *View) Apply(ev domain.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Entity {
	case domain.EntityProduct:
		return applyEntry(v.products, ev, ev.Product)
	case domain.EntityOrder:
		return applyEntry(v.orders, ev, ev.Order)
	default:
		return false
	}
}

func applyEntry[T any](m map[string]entry[T], ev domain.Event, payload *T) bool {
	cur, exists := m[ev.EntityID]
	if exists && ev.Seq <= cur.seq {
		return false
	}
	if ev.Op == domain.OpDelete {
		m[ev.EntityID] = entry[T]{seq: ev.Seq, value: nil}
		return true
	}
	if payload == nil {
		return false
	}
	m[ev.EntityID] = entry[T]{seq: ev.Seq, value: payload}
	return true
}

// Product returns the current copy of a product, or nil if unknown or
// deleted.
func (v *View) Product(id string) *domain.Product {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.products[id].value
}

// Order returns the current copy of an order, or nil if unknown or deleted.
func (v *View) Order(id string) *domain.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.orders[id].value
}

// Products returns all live products.
func (v *View) Products() []*domain.Product {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]*domain.Product, 0, len(v.products))
	for _, e := range v.products {
		if e.value != nil {
			result = append(result, e.value)
		}
	}
	return result
}

// Orders returns all live orders.
func (v *View) Orders() []*domain.Order {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]*domain.Order, 0, len(v.orders))
	for _, e := range v.orders {
		if e.value != nil {
			result = append(result, e.value)
		}
	}
	return result
}
