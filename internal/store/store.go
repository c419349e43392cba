package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/google/uuid"
)

// Common errors returned by the store
var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrStatusConflict means a guarded status update matched no row because
	// the order's status changed underneath the caller.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// InsufficientStockError reports a reservation shortfall. Available lets the
// caller offer a reduced quantity instead of failing outright.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ProductStore is the catalog side of the storage layer. Reserve and Release
// are the stock ledger: both must be atomic with respect to concurrent
// callers, implemented as a single guarded conditional update rather than
// read-then-write.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// Reserve atomically decrements available stock by qty and returns the
	// new quantity. On shortfall nothing changes and the error is an
	// *InsufficientStockError carrying the quantity actually available.
	Reserve(ctx context.Context, id int64, qty int64) (int64, error)

	// Release is the symmetric atomic increment, used when an order is
	// cancelled or a partially reserved checkout is rolled back.
	Release(ctx context.Context, id int64, qty int64) (int64, error)
}

// OrderStore persists orders. Orders are immutable apart from status.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)

	// UpdateOrderStatus moves an order from one status to another as a
	// single guarded update. Returns ErrStatusConflict if the order is no
	// longer in the expected source status.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error

	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// Store combines both sides plus lifecycle management.
type Store interface {
	ProductStore
	OrderStore
	Close() error
}
