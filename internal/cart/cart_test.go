package cart

import (
	"testing"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func offerProduct() *domain.Product {
	return &domain.Product{
		ID:          1,
		Name:        "Cafe americano",
		Price:       1250,
		Stock:       10,
		OfferActive: true,
		OfferPrice:  ptr(int64(500)),
		OfferStart:  ptr("07:00"),
		OfferEnd:    ptr("10:00"),
	}
}

func cartAt(hour, minute int) *Cart {
	c := New("user-1")
	c.now = func() time.Time {
		return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
	}
	return c
}

func TestCart_AddFreezesOfferPrice(t *testing.T) {
	c := cartAt(8, 0)

	low, err := c.Add(offerProduct(), 2)
	require.NoError(t, err)
	assert.False(t, low)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(500), items[0].UnitPrice)
	assert.Equal(t, int64(1000), c.Subtotal())
}

func TestCart_AddOutsideWindowUsesBasePrice(t *testing.T) {
	c := cartAt(11, 0)

	_, err := c.Add(offerProduct(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), c.Items()[0].UnitPrice)
}

func TestCart_PriceNotReresolvedUntilReAdd(t *testing.T) {
	c := cartAt(8, 0)
	_, err := c.Add(offerProduct(), 1)
	require.NoError(t, err)

	// The offer window closes while the item sits in the cart.
	c.now = func() time.Time {
		return time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	}

	require.NoError(t, c.SetQuantity(1, 3))
	assert.Equal(t, int64(500), c.Items()[0].UnitPrice, "SetQuantity must not re-price")

	// Re-adding the item refreshes the frozen price.
	_, err = c.Add(offerProduct(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), c.Items()[0].UnitPrice)
	assert.Equal(t, int64(4), c.Items()[0].Quantity)
}

func TestCart_AddWarnsWhenQuantityExceedsKnownStock(t *testing.T) {
	c := cartAt(12, 0)
	p := &domain.Product{ID: 2, Name: "Torta", Price: 800, Stock: 3}

	low, err := c.Add(p, 5)
	require.NoError(t, err)
	assert.True(t, low, "requested 5 with 3 known available")

	// The warning does not block the add.
	assert.Equal(t, int64(5), c.Items()[0].Quantity)
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	c := cartAt(12, 0)

	_, err := c.Add(offerProduct(), 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = c.Add(offerProduct(), -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Zero(t, c.Len())
}

func TestCart_SetQuantityAndRemove(t *testing.T) {
	c := cartAt(12, 0)
	_, err := c.Add(offerProduct(), 1)
	require.NoError(t, err)

	require.NoError(t, c.SetQuantity(1, 4))
	assert.Equal(t, int64(4), c.Items()[0].Quantity)

	assert.ErrorIs(t, c.SetQuantity(99, 1), ErrItemNotFound)
	assert.ErrorIs(t, c.SetQuantity(1, 0), ErrInvalidQuantity)

	c.Remove(1)
	assert.Zero(t, c.Len())
	c.Remove(1) // no-op
}

func TestCart_TotalIncludesDeliverySurcharge(t *testing.T) {
	c := cartAt(12, 0)
	_, err := c.Add(&domain.Product{ID: 3, Name: "Sandwich", Price: 900, Stock: 10}, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(1800), c.Total(), "pickup has no surcharge")

	c.SetDelivery(domain.DeliveryModeDelivery, "Av. Larco 101")
	assert.Equal(t, int64(1800+domain.DeliverySurcharge), c.Total())

	c.SetDelivery(domain.DeliveryModePickup, "")
	assert.Equal(t, int64(1800), c.Total())
}

func TestCart_Clear(t *testing.T) {
	c := cartAt(12, 0)
	_, err := c.Add(offerProduct(), 2)
	require.NoError(t, err)

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Subtotal())
}
