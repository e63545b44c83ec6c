package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock is returned by the storage layer when a guarded
// stock decrement would drive stock negative. Inside a sale commit this
// aborts and rolls back the whole transaction.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product is a catalog item available for sale.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Price      decimal.Decimal
	Stock      int
	Active     bool
}

// Repository defines read operations for the product catalog.
//
// AvailableStock is advisory: it reports the stock level at read time and
// must not be trusted for correctness. The authoritative stock guard is the
// conditional decrement inside the sale commit transaction.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	AvailableStock(ctx context.Context, id string) (int, error)
}
