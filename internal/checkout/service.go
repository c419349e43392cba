// Package checkout turns a session cart into a pending order: it validates
// the request, reserves stock atomically per line, freezes unit prices at
// submission time and creates the order. Validation failures reject before
// any state is touched; reservation failures roll back whatever was already
// reserved, so a failed checkout is never partially observable.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/orders"
	"github.com/dquispe/tienda/internal/pricing"
	"github.com/dquispe/tienda/internal/store"
	"github.com/google/uuid"
)

// DefaultReserveTimeout bounds the whole reservation step. Past it the
// checkout is treated as failed and is never retried by the core.
const DefaultReserveTimeout = 5 * time.Second

// Line is one requested cart line. Prices are not part of the request; they
// are resolved at submission time.
type Line struct {
	ProductID int64
	Quantity  int64
}

// Request is everything needed to place an order.
type Request struct {
	CustomerID         string
	DeliveryMode       domain.DeliveryMode
	Address            string
	Lines              []Line
	PaymentMethod      domain.PaymentMethod
	PaymentEvidenceRef string
}

type Service struct {
	catalog        *catalog.Service
	orders         *orders.Service
	reserveTimeout time.Duration

	// now is swappable for tests of submission-time pricing.
	now func() time.Time
}

func NewService(cat *catalog.Service, ord *orders.Service) *Service {
	return &Service{
		catalog:        cat,
		orders:         ord,
		reserveTimeout: DefaultReserveTimeout,
		now:            time.Now,
	}
}

// Checkout places an order. On success the order is in pending status and
// its creation has been broadcast on the orders topic.
func (s *Service) Checkout(ctx context.Context, req *Request) (*domain.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()

	// Load and price every line before touching stock.
	products := make([]*domain.Product, len(req.Lines))
	for i, line := range req.Lines {
		p, err := s.catalog.Get(ctx, line.ProductID)
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, &domain.ValidationError{
				Field:  "items",
				Reason: fmt.Sprintf("product %d does not exist", line.ProductID),
			}
		}
		if err != nil {
			return nil, err
		}
		products[i] = p
	}

	// Reserve every line, collecting shortfalls instead of stopping at the
	// first so the session learns about all of them at once.
	rctx, cancel := context.WithTimeout(ctx, s.reserveTimeout)
	defer cancel()

	reserved := make([]Line, 0, len(req.Lines))
	var shortfalls []Shortfall
	for i, line := range req.Lines {
		_, err := s.catalog.Reserve(rctx, line.ProductID, line.Quantity)
		if err == nil {
			reserved = append(reserved, line)
			continue
		}
		var insufficient *store.InsufficientStockError
		if errors.As(err, &insufficient) {
			shortfalls = append(shortfalls, Shortfall{
				ProductID:   line.ProductID,
				ProductName: products[i].Name,
				Requested:   line.Quantity,
				Available:   insufficient.Available,
			})
			continue
		}
		s.rollback(reserved)
		return nil, fmt.Errorf("reservation failed for product %d: %w", line.ProductID, err)
	}
	if len(shortfalls) > 0 {
		s.rollback(reserved)
		return nil, &OutOfStockError{Shortfalls: shortfalls}
	}

	// Freeze line snapshots with prices as resolved at submission time.
	items := make([]domain.OrderItem, len(req.Lines))
	for i, line := range req.Lines {
		items[i] = domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: products[i].Name,
			UnitPrice:   pricing.Resolve(products[i], now),
			Quantity:    line.Quantity,
		}
	}

	order := &domain.Order{
		ID:                 uuid.New(),
		CustomerID:         req.CustomerID,
		DeliveryMode:       req.DeliveryMode,
		Address:            req.Address,
		Items:              items,
		Status:             domain.OrderStatusPending,
		PaymentMethod:      req.PaymentMethod,
		PaymentEvidenceRef: req.PaymentEvidenceRef,
		CreatedAt:          now,
	}
	order.Total = order.ItemsTotal() + domain.SurchargeFor(order.DeliveryMode)

	// Record persists and broadcasts as one step, so an admin reacting to
	// the new order cannot get their update out-sequenced by the insert.
	if err := s.orders.Record(ctx, order); err != nil {
		s.rollback(reserved)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	return order, nil
}

// rollback releases lines already reserved by a failed checkout. It uses a
// fresh context: the rollback must run to completion even when the request
// context is gone.
func (s *Service) rollback(reserved []Line) {
	ctx, cancel := context.WithTimeout(context.Background(), s.reserveTimeout)
	defer cancel()
	for _, line := range reserved {
		if _, err := s.catalog.Release(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("checkout: failed to release %d units of product %d: %v",
				line.Quantity, line.ProductID, err)
		}
	}
}

func validateRequest(req *Request) error {
	if len(req.Lines) == 0 {
		return ErrEmptyCart
	}
	if req.CustomerID == "" {
		return &domain.ValidationError{Field: "customer_id", Reason: "must not be empty"}
	}
	for _, line := range req.Lines {
		if line.ProductID <= 0 {
			return &domain.ValidationError{Field: "items", Reason: "product id must be positive"}
		}
		if line.Quantity <= 0 {
			return &domain.ValidationError{Field: "items", Reason: "quantity must be positive"}
		}
	}
	switch req.DeliveryMode {
	case domain.DeliveryModeDelivery:
		if req.Address == "" {
			return &domain.ValidationError{Field: "address", Reason: "required for delivery orders"}
		}
	case domain.DeliveryModePickup:
	default:
		return &domain.ValidationError{Field: "delivery_mode", Reason: "must be delivery or pickup"}
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCash:
		if req.PaymentEvidenceRef != "" {
			return &domain.ValidationError{Field: "payment_evidence_ref", Reason: "only valid for wallet transfers"}
		}
	case domain.PaymentMethodWalletTransfer:
	default:
		return &domain.ValidationError{Field: "payment_method", Reason: "must be cash or wallet-transfer"}
	}
	return nil
}
