package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// Shortfall names one item that lacked stock at reservation time, with the
// quantity actually available so the session can offer a reduced quantity.
type Shortfall struct {
	ProductID   int64
	ProductName string
	Requested   int64
	Available   int64
}

// OutOfStockError is returned when one or more reservations fail; no order
// is created and no stock stays reserved.
type OutOfStockError struct {
	Shortfalls []Shortfall
}

func (e *OutOfStockError) Error() string {
	names := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		names[i] = fmt.Sprintf("%s (requested %d, available %d)", s.ProductName, s.Requested, s.Available)
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}
