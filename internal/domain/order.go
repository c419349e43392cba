package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFulfilled || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFulfilled, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo encodes the order status graph:
//
//	pending -> paid | cancelled
//	paid    -> fulfilled
//
// fulfilled and cancelled have no outgoing transitions. Creation into
// pending is not a transition and is handled at checkout.
func CanTransitionTo(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusCancelled
	case OrderStatusPaid:
		return to == OrderStatusFulfilled
	default:
		return false
	}
}

// DeliveryMode selects between home delivery and in-store pickup.
type DeliveryMode string

const (
	DeliveryModeDelivery DeliveryMode = "delivery"
	DeliveryModePickup   DeliveryMode = "pickup"
)

// DeliverySurcharge is the flat fee (minor units) added to delivery orders.
const DeliverySurcharge int64 = 200

// SurchargeFor returns the delivery surcharge for the given mode.
func SurchargeFor(mode DeliveryMode) int64 {
	if mode == DeliveryModeDelivery {
		return DeliverySurcharge
	}
	return 0
}

// PaymentMethod is how the customer intends to pay. Payment confirmation is
// a manual admin action, not a computation.
type PaymentMethod string

const (
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodWalletTransfer PaymentMethod = "wallet-transfer"
)

// OrderItem is a frozen snapshot of a catalog item at submission time.
// UnitPrice never changes after the order is created, even if the product's
// price or offer changes later.
type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

// Order is a frozen financial record. It is created once at checkout and
// afterwards mutated only through status transitions.
type Order struct {
	ID                 uuid.UUID     `json:"id"`
	CustomerID         string        `json:"customer_id"`
	DeliveryMode       DeliveryMode  `json:"delivery_mode"`
	Address            string        `json:"address,omitempty"`
	Items              []OrderItem   `json:"items"`
	Total              int64         `json:"total"`
	Status             OrderStatus   `json:"status"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	PaymentEvidenceRef string        `json:"payment_evidence_ref,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// ItemsTotal returns the sum of frozen line totals, without the surcharge.
func (o *Order) ItemsTotal() int64 {
	var sum int64
	for _, it := range o.Items {
		sum += it.UnitPrice * it.Quantity
	}
	return sum
}

// Actor identifies who is requesting a mutation.
type Actor struct {
	ID   string
	Role Role
}

// Role is the coarse permission level attached to a session.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)
