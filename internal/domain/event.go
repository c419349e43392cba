package domain

import "time"

// Topic names a mutation feed.
type Topic string

const (
	TopicCatalog Topic = "catalog"
	TopicOrders  Topic = "orders"
)

// EventOp is the kind of mutation an event describes.
type EventOp string

const (
	OpInsert EventOp = "insert"
	OpUpdate EventOp = "update"
	OpDelete EventOp = "delete"
)

// EntityType tags which entity an event is about.
type EntityType string

const (
	EntityProduct EntityType = "product"
	EntityOrder   EntityType = "order"
)

// Event is a mutation broadcast on the change feed. The payload is a closed
// set of variants: exactly one of Product or Order is set for inserts and
// updates; both are nil for deletes, where EntityID alone identifies the row.
//
// Seq is assigned by the bus at publish time and is monotonic per topic.
// Subscribers must merge by EntityID and discard events whose Seq is not
// newer than the one they already hold, since delivery is at-least-once and
// only ordered per entity.
type Event struct {
	Seq      uint64     `json:"seq"`
	Op       EventOp    `json:"op"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id"`

	// CustomerID is set on order events and drives per-customer filtering.
	CustomerID string `json:"customer_id,omitempty"`

	Product *Product `json:"product,omitempty"`
	Order   *Order   `json:"order,omitempty"`

	At time.Time `json:"at"`
}
