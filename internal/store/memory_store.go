package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory storage. Used in tests and as
// a reference for the guarded stock arithmetic: check and mutate happen
// under one critical section, never as separate read and write steps.
type MemoryStore struct {
	mu         sync.RWMutex
	products   map[int64]*domain.Product
	orders     map[uuid.UUID]*domain.Order
	nextProdID int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[int64]*domain.Product),
		orders:     make(map[uuid.UUID]*domain.Order),
		nextProdID: 1,
	}
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextProdID
	}
	if p.ID >= s.nextProdID {
		s.nextProdID = p.ID + 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID]; !exists {
		return ErrProductNotFound
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

// Reserve decrements stock under the lock; the shortfall check and the
// decrement form one atomic step.
func (s *MemoryStore) Reserve(_ context.Context, id int64, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return 0, ErrProductNotFound
	}
	if p.Stock < qty {
		return 0, &InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (s *MemoryStore) Release(_ context.Context, id int64, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return 0, ErrProductNotFound
	}
	p.Stock += qty
	return p.Stock, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	cp := cloneOrder(o)
	s.orders[o.ID] = cp
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.orders[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(*domain.Order) bool { return true }), nil
}

func (s *MemoryStore) ListOrdersByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOrders(func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (s *MemoryStore) listOrders(keep func(*domain.Order) bool) []*domain.Order {
	result := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			result = append(result, cloneOrder(o))
		}
	}
	// Newest first, id as tiebreak so the order is stable.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, exists := s.orders[id]
	if !exists {
		return ErrOrderNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	return nil
}

func (s *MemoryStore) DeleteOrder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[id]; !exists {
		return ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = make([]domain.OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
