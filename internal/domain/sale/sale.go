// Package sale defines the committed transaction record and the atomic
// persistence contract for finalizing a sale.
package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/cart"
	"github.com/selldesk/pos-core/internal/domain/discount"
)

// ErrCommitFailed is returned when the atomic commit could not complete.
// The storage layer guarantees full rollback: no header, line items, stock
// mutation, or usage-counter mutation survives a failed commit.
var ErrCommitFailed = errors.New("sale commit failed")

// ErrNotFound is returned when a requested sale does not exist.
var ErrNotFound = errors.New("sale not found")

// Sale is a committed transaction. It is created exactly once, atomically,
// and is immutable afterwards except for the Voided flag (voiding is an
// administrative operation outside this core).
type Sale struct {
	ID            string
	Items         []cart.Item
	Applied       []discount.Applied
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	CashierID     string
	Voided        bool
	CreatedAt     time.Time
}

// Committer executes the atomic unit of work that finalizes a sale:
// sale header, line items, guarded stock decrements, discount-usage
// records, and guarded usage-counter increments. All steps take effect or
// none do.
//
// Implementations must express stock decrements and usage increments as
// guarded relative deltas at the storage layer so concurrent sales
// serialize without lost updates, and must reject the transaction rather
// than drive stock negative or a usage counter past its cap.
type Committer interface {
	Commit(ctx context.Context, s *Sale) error
}

// Repository extends Committer with read access for receipt rendering and
// reporting boundaries.
type Repository interface {
	Committer
	GetByID(ctx context.Context, id string) (*Sale, error)
}
