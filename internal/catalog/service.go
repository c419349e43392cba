// Package catalog owns administrative product mutations and the stock
// ledger entry points, publishing a catalog event for every accepted change.
package catalog

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/pricing"
	"github.com/dquispe/tienda/internal/store"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	store store.ProductStore
	bus   bus.Bus
	sfg   singleflight.Group // Collapses concurrent catalog list loads

	// pubMu keeps the store write and its event publish as one step, so
	// subscribers see stock updates for a product in commit order.
	pubMu sync.Mutex
}

func NewService(st store.ProductStore, b bus.Bus) *Service {
	return &Service{
		store: st,
		bus:   b,
	}
}

// List returns the full catalog, newest first. Concurrent callers share one
// store read via singleflight.
func (s *Service) List(ctx context.Context) ([]*domain.Product, error) {
	v, err, _ := s.sfg.Do("list", func() (interface{}, error) {
		return s.store.ListProducts(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// Create validates and stores a new product, then broadcasts it.
func (s *Service) Create(ctx context.Context, p *domain.Product) error {
	if err := validate(p); err != nil {
		return err
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.publish(ctx, domain.OpInsert, p)
	return nil
}

// Update overwrites a product with last-writer-wins semantics; concurrent
// admin edits to the same product are not arbitrated.
func (s *Service) Update(ctx context.Context, p *domain.Product) error {
	if err := validate(p); err != nil {
		return err
	}
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.publish(ctx, domain.OpUpdate, p)
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.publishDelete(ctx, id)
	return nil
}

// Reserve atomically takes qty units of stock and broadcasts the new
// quantity. The error, when stock falls short, is the store's
// *InsufficientStockError carrying the available quantity.
func (s *Service) Reserve(ctx context.Context, id int64, qty int64) (int64, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	newStock, err := s.store.Reserve(ctx, id, qty)
	if err != nil {
		return 0, err
	}
	s.publishStock(ctx, id, newStock)
	return newStock, nil
}

// Release returns qty units of stock, used on cancellation and checkout
// rollback.
func (s *Service) Release(ctx context.Context, id int64, qty int64) (int64, error) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	newStock, err := s.store.Release(ctx, id, qty)
	if err != nil {
		return 0, err
	}
	s.publishStock(ctx, id, newStock)
	return newStock, nil
}

func (s *Service) publish(ctx context.Context, op domain.EventOp, p *domain.Product) {
	cp := *p
	ev := domain.Event{
		Op:       op,
		Entity:   domain.EntityProduct,
		EntityID: strconv.FormatInt(p.ID, 10),
		Product:  &cp,
		At:       time.Now(),
	}
	if err := s.bus.Publish(ctx, domain.TopicCatalog, ev); err != nil {
		log.Printf("catalog: failed to publish %s event for product %d: %v", op, p.ID, err)
	}
}

func (s *Service) publishDelete(ctx context.Context, id int64) {
	ev := domain.Event{
		Op:       domain.OpDelete,
		Entity:   domain.EntityProduct,
		EntityID: strconv.FormatInt(id, 10),
		At:       time.Now(),
	}
	if err := s.bus.Publish(ctx, domain.TopicCatalog, ev); err != nil {
		log.Printf("catalog: failed to publish delete event for product %d: %v", id, err)
	}
}

// publishStock broadcasts the product with its post-reservation quantity.
func (s *Service) publishStock(ctx context.Context, id int64, newStock int64) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		log.Printf("catalog: failed to load product %d for stock event: %v", id, err)
		return
	}
	p.Stock = newStock
	s.publish(ctx, domain.OpUpdate, p)
}

func validate(p *domain.Product) error {
	if p.Name == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Price < 0 {
		return &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if p.Stock < 0 {
		return &domain.ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	// Offer price is not required to be lower than the base price; discount
	// direction is not enforced.
	if p.OfferPrice != nil && *p.OfferPrice < 0 {
		return &domain.ValidationError{Field: "offer_price", Reason: "must not be negative"}
	}
	if err := pricing.ValidateWindow(p.OfferStart, p.OfferEnd); err != nil {
		return &domain.ValidationError{Field: "offer_window", Reason: err.Error()}
	}
	return nil
}
