// Package cart holds a customer session's selections. A Cart is owned by
// exactly one session task and is never shared across sessions, so it needs
// no locking. It is not persisted: it is rebuilt per session and discarded
// after checkout or when the session ends.
package cart

import (
	"errors"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/dquispe/tienda/internal/pricing"
)

var (
	ErrItemNotFound    = errors.New("item not in cart")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Cart aggregates a session's line items with prices frozen at the moment
// each item was added or last re-added.
type Cart struct {
	customerID   string
	deliveryMode domain.DeliveryMode
	address      string
	items        []domain.CartItem

	// now is swappable for tests of time-windowed pricing.
	now func() time.Time
}

// New creates an empty pickup cart for a customer session.
func New(customerID string) *Cart {
	return &Cart{
		customerID:   customerID,
		deliveryMode: domain.DeliveryModePickup,
		now:          time.Now,
	}
}

// CustomerID returns the owning customer.
func (c *Cart) CustomerID() string { return c.customerID }

// SetDelivery selects the delivery mode and address for checkout.
func (c *Cart) SetDelivery(mode domain.DeliveryMode, address string) {
	c.deliveryMode = mode
	c.address = address
}

// DeliveryMode returns the selected mode.
func (c *Cart) DeliveryMode() domain.DeliveryMode { return c.deliveryMode }

// Address returns the delivery address, empty for pickup.
func (c *Cart) Address() string { return c.address }

// Add puts qty units of p in the cart, re-pricing the line through the offer
// resolver at the current time. Adding an item already in the cart bumps its
// quantity and refreshes its frozen price. The returned lowStock flag warns
// the caller that the requested quantity exceeds the last-known available
// quantity; stock is only authoritative at reservation time, so this is a
// warning, not an error.
func (c *Cart) Add(p *domain.Product, qty int64) (lowStock bool, err error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}

	price := pricing.Resolve(p, c.now())
	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Quantity += qty
			c.items[i].UnitPrice = price
			return c.items[i].Quantity > p.Stock, nil
		}
	}

	c.items = append(c.items, domain.CartItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   price,
		Quantity:    qty,
	})
	return qty > p.Stock, nil
}

// SetQuantity changes a line's quantity without re-pricing it.
func (c *Cart) SetQuantity(productID int64, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity = qty
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove drops a line from the cart. Removing an absent item is a no-op.
func (c *Cart) Remove(productID int64) {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []domain.CartItem {
	items := make([]domain.CartItem, len(c.items))
	copy(items, c.items)
	return items
}

// Len returns the number of lines.
func (c *Cart) Len() int { return len(c.items) }

// Subtotal is the sum of frozen unit price times quantity over all lines.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.items {
		sum += it.UnitPrice * it.Quantity
	}
	return sum
}

// Total is the subtotal plus the delivery surcharge for the selected mode.
// It equals the grand total later recorded on the order unless a price or
// offer window changed between add and checkout; the checkout response
// flags that case so the session is never silently charged a different
// total than it displayed.
func (c *Cart) Total() int64 {
	return c.Subtotal() + domain.SurchargeFor(c.deliveryMode)
}

// Clear empties the cart after a successful checkout.
func (c *Cart) Clear() {
	c.items = nil
}
