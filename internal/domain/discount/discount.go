// Package discount implements the promotional discount engine: the catalog
// entity, automatic eligibility, coupon validation, stacking order, and
// per-kind amount calculation.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage takes a percentage off the scoped subtotal.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount off the cart, capped at the remaining total.
	KindFixed Kind = "fixed"
	// KindBuy2Pay1 halves the line subtotal of the scoped product when its
	// quantity is at least 2. The whole line is halved, not just one paired
	// unit; kept as-is pending a product decision.
	KindBuy2Pay1 Kind = "buy2pay1"
	// KindBuy3Pay2 gives one unit free for every complete triple of the
	// scoped product.
	KindBuy3Pay2 Kind = "buy3pay2"
	// KindCombo marks a multi-product bundle. Bundle pricing rules are not
	// specified yet, so combo discounts currently compute a zero amount.
	KindCombo Kind = "combo"
)

// IsQuantityBased reports whether the kind is resolved against untouched
// item quantities rather than a monetary value.
func (k Kind) IsQuantityBased() bool {
	switch k {
	case KindBuy2Pay1, KindBuy3Pay2, KindCombo:
		return true
	default:
		return false
	}
}

// Coupon validation rejection reasons, surfaced to the end user verbatim.
var (
	ErrCodeNotFound        = errors.New("not_found")
	ErrInactive            = errors.New("inactive")
	ErrExpired             = errors.New("expired_or_not_yet_valid")
	ErrBelowMinPurchase    = errors.New("below_minimum_purchase")
	ErrUsageLimitReached   = errors.New("usage_limit_reached")
	ErrScopeConflict       = errors.New("discount cannot target both a product and a category")
	ErrUsageCapWouldExceed = errors.New("usage counter would exceed cap")
)

// Scope identifies the subset of a cart a discount can apply to.
type Scope int

const (
	// ScopeGlobal applies to the whole cart.
	ScopeGlobal Scope = iota
	// ScopeCategory applies to items of one category.
	ScopeCategory
	// ScopeProduct applies to one product's line.
	ScopeProduct
)

// Discount is a configured promotional rule.
//
// ProductID and CategoryID are mutually exclusive; use New to construct
// valid records. Uses is mutated only by the sale commit transaction via
// Repository.IncrementUses and is monotonically non-decreasing.
type Discount struct {
	ID          string
	Name        string
	Description string
	Kind        Kind
	// Value is percentage points for KindPercentage and a currency amount
	// for KindFixed; it is meaningless for quantity-based kinds.
	Value       decimal.Decimal
	ValidFrom   *time.Time
	ValidUntil  *time.Time
	Active      bool
	MinPurchase decimal.Decimal
	ProductID   string
	CategoryID  string
	// CouponCode gates the discount behind an explicit code. Empty means
	// the discount is applied automatically.
	CouponCode string
	// MaxUses caps total redemptions; 0 means unlimited.
	MaxUses int
	Uses    int
}

// New validates scope exclusivity and returns the discount.
func New(d Discount) (*Discount, error) {
	if d.ProductID != "" && d.CategoryID != "" {
		return nil, ErrScopeConflict
	}
	if d.MaxUses > 0 && d.Uses > d.MaxUses {
		return nil, ErrUsageCapWouldExceed
	}
	return &d, nil
}

// Scope returns the discount's target scope.
func (d *Discount) Scope() Scope {
	switch {
	case d.ProductID != "":
		return ScopeProduct
	case d.CategoryID != "":
		return ScopeCategory
	default:
		return ScopeGlobal
	}
}

// IsCoupon reports whether the discount requires an explicit code.
func (d *Discount) IsCoupon() bool {
	return d.CouponCode != ""
}

// ValidAt reports whether t falls within the validity window. Both bounds
// are inclusive; a nil bound is open.
func (d *Discount) ValidAt(t time.Time) bool {
	if d.ValidFrom != nil && t.Before(*d.ValidFrom) {
		return false
	}
	if d.ValidUntil != nil && t.After(*d.ValidUntil) {
		return false
	}
	return true
}

// UsageExhausted reports whether the usage cap has been reached.
func (d *Discount) UsageExhausted() bool {
	return d.MaxUses > 0 && d.Uses >= d.MaxUses
}

// Repository provides lookup and mutation of discount records.
//
// IncrementUses must be a guarded relative increment at the storage layer
// (uses = uses + 1 while under the cap), never a read-modify-write, so
// concurrent sales against the same coupon serialize without lost updates.
// It participates in the sale commit transaction via sale persistence and
// is exposed here for administrative tooling only.
type Repository interface {
	Create(ctx context.Context, d *Discount) error
	Update(ctx context.Context, d *Discount) error
	GetByID(ctx context.Context, id string) (*Discount, error)
	// ListAutomatic returns active discounts with no coupon code.
	ListAutomatic(ctx context.Context) ([]Discount, error)
	// FindByCode looks up a coupon-gated discount by exact code match.
	// Returns ErrCodeNotFound when no discount carries the code.
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// SetActive soft-enables or soft-disables a discount. Records are never
	// hard-deleted while usage history must be retained.
	SetActive(ctx context.Context, id string, active bool) error
	IncrementUses(ctx context.Context, id string) error
}
