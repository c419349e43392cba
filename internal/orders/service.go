// Package orders governs the order lifecycle after creation: admin-driven
// status transitions, administrative deletion, and the order feeds.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/store"
	"github.com/google/uuid"
)

var (
	// ErrForbidden rejects a mutation from an actor without the admin role.
	ErrForbidden = errors.New("action requires admin role")
)

// Notifier pushes a message to a customer. Implemented by the notify
// package; delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, target, message string) error
}

type Service struct {
	store    store.OrderStore
	catalog  *catalog.Service
	bus      bus.Bus
	notifier Notifier // optional

	// pubMu keeps each order write and its event publish as one step, so
	// subscribers see a given order's events in commit order. Every order
	// mutation (creation included, via Record) goes through this lock.
	pubMu sync.Mutex
}

func NewService(st store.OrderStore, cat *catalog.Service, b bus.Bus) *Service {
	return &Service{
		store:   st,
		catalog: cat,
		bus:     b,
	}
}

// WithNotifier attaches a customer notifier for accepted transitions.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Record persists a freshly checked-out order and broadcasts its insert
// event. Orders are only ever created through here, which keeps creation
// inside the same commit-order lock as transitions: a reacting admin cannot
// get the insert out-sequenced by their own update.
func (s *Service) Record(ctx context.Context, order *domain.Order) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return err
	}
	s.publish(ctx, domain.OpInsert, order)
	return nil
}

// Transition moves an order to target. Only admins may transition; the
// status graph is enforced both in memory and by the store's guarded update,
// so two racing admins cannot both win. Cancelling restores the stock of
// every line item. Each accepted transition emits exactly one order event.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, target domain.OrderStatus, actor domain.Actor) (*domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !target.IsValid() {
		return nil, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionTo(order.Status, target) {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: target}
	}

	s.pubMu.Lock()
	if err := s.store.UpdateOrderStatus(ctx, id, order.Status, target); err != nil {
		s.pubMu.Unlock()
		if errors.Is(err, store.ErrStatusConflict) {
			// Another admin moved the order first; report against the
			// status it actually has now.
			current, getErr := s.store.GetOrder(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return nil, &domain.InvalidTransitionError{From: current.Status, To: target}
		}
		return nil, err
	}
	order.Status = target
	s.publish(ctx, domain.OpUpdate, order)
	s.pubMu.Unlock()

	if target == domain.OrderStatusCancelled {
		s.restockLines(order)
	}

	s.notifyCustomer(order)
	return order, nil
}

// Delete removes an order outright. It is an administrative purge, not a
// transition, and is permitted from any status.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return err
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return err
	}

	ev := domain.Event{
		Op:         domain.OpDelete,
		Entity:     domain.EntityOrder,
		EntityID:   id.String(),
		CustomerID: order.CustomerID,
		At:         time.Now(),
	}
	if err := s.bus.Publish(ctx, domain.TopicOrders, ev); err != nil {
		log.Printf("orders: failed to publish delete event for %s: %v", id, err)
	}
	return nil
}

// Get returns one order. Customers may only read their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && order.CustomerID != actor.ID {
		// Customers cannot learn whether someone else's order exists.
		return nil, store.ErrOrderNotFound
	}
	return order, nil
}

// List returns the actor's order feed: everything for admins, own orders
// for customers. Newest first.
func (s *Service) List(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.Role == domain.RoleAdmin {
		return s.store.ListOrders(ctx)
	}
	return s.store.ListOrdersByCustomer(ctx, actor.ID)
}

// Stats are the admin dashboard aggregates.
type Stats struct {
	TotalSales    int64 `json:"total_sales"`
	PendingOrders int   `json:"pending_orders"`
	LowStockItems int   `json:"low_stock_items"`
}

// Stats computes dashboard aggregates: sales count only fulfilled orders.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	allOrders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, o := range allOrders {
		switch o.Status {
		case domain.OrderStatusFulfilled:
			stats.TotalSales += o.Total
		case domain.OrderStatusPending:
			stats.PendingOrders++
		}
	}
	for _, p := range products {
		if p.Stock < domain.LowStockThreshold {
			stats.LowStockItems++
		}
	}
	return stats, nil
}

// restockLines returns cancelled stock to the catalog. Runs on a fresh
// context so cancellation of the request cannot leave stock half restored.
func (s *Service) restockLines(order *domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, item := range order.Items {
		if _, err := s.catalog.Release(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("orders: failed to restock %d units of product %d for order %s: %v",
				item.Quantity, item.ProductID, order.ID, err)
		}
	}
}

func (s *Service) publish(ctx context.Context, op domain.EventOp, order *domain.Order) {
	cp := *order
	ev := domain.Event{
		Op:         op,
		Entity:     domain.EntityOrder,
		EntityID:   order.ID.String(),
		CustomerID: order.CustomerID,
		Order:      &cp,
		At:         time.Now(),
	}
	if err := s.bus.Publish(ctx, domain.TopicOrders, ev); err != nil {
		log.Printf("orders: failed to publish %s event for %s: %v", op, order.ID, err)
	}
}

// notifyCustomer is fire and forget; a dead notifier never fails a
// transition.
func (s *Service) notifyCustomer(order *domain.Order) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := fmt.Sprintf("Your order %s is now %s", order.ID, order.Status)
		if err := s.notifier.Notify(ctx, order.CustomerID, msg); err != nil {
			log.Printf("orders: failed to notify customer %s: %v", order.CustomerID, err)
		}
	}()
}
