// Package cart defines the in-progress sale line items handed to the
// discount engine and the checkout service. Carts are produced by the
// calling checkout flow and are read-only to this module.
package cart

import (
	"github.com/shopspring/decimal"
)

// Item is one product line in an in-progress sale.
type Item struct {
	ProductID  string
	CategoryID string
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Subtotal returns quantity * unit price for this line.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal returns the sum of line subtotals across all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}
