package domain

import "time"

// Product is a sellable catalog item. Prices are in currency minor units
// (centimos), so S/ 12.50 is stored as 1250.
type Product struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Stock    int64  `json:"stock"`
	ImageURL string `json:"image_url,omitempty"`

	// Offer fields. OfferPrice is only meaningful when OfferActive is set.
	// OfferStart/OfferEnd are time-of-day values ("HH:MM") describing a
	// window that repeats every calendar day; both set or both nil.
	OfferActive bool    `json:"offer_active"`
	OfferPrice  *int64  `json:"offer_price,omitempty"`
	OfferStart  *string `json:"offer_start,omitempty"`
	OfferEnd    *string `json:"offer_end,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// LowStockThreshold is the quantity below which clients show a low-stock badge.
const LowStockThreshold = 5
