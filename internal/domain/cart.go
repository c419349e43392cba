package domain

// CartItem is a line in a session cart. UnitPrice is frozen at the moment the
// item was added (or last re-added); it is not re-resolved when an offer
// window opens or closes while the item sits in the cart.
type CartItem struct {
	ProductID   int64
	ProductName string
	UnitPrice   int64
	Quantity    int64
}
