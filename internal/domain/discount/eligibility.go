package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/selldesk/pos-core/internal/domain/cart"
)

// Selector picks the automatically-applicable discounts for a cart.
// Coupon-gated discounts are never selected here; they are only reachable
// through the CouponValidator.
type Selector struct {
	repo Repository
	now  func() time.Time
}

// NewSelector creates a Selector backed by the given Repository.
func NewSelector(repo Repository) *Selector {
	return &Selector{repo: repo, now: time.Now}
}

// Automatic returns the catalog discounts that are automatic candidates for
// the given cart: active, within their validity window, minimum purchase
// satisfied, no coupon code, and scoped to the cart (or unscoped).
// It has no side effects.
func (s *Selector) Automatic(ctx context.Context, items []cart.Item) ([]Discount, error) {
	candidates, err := s.repo.ListAutomatic(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list automatic discounts")
	}

	subtotal := cart.Subtotal(items)
	now := s.now()

	eligible := make([]Discount, 0, len(candidates))
	for _, d := range candidates {
		if !d.Active || d.IsCoupon() {
			continue
		}
		if !d.ValidAt(now) {
			continue
		}
		if subtotal.LessThan(d.MinPurchase) {
			continue
		}
		if !scopeMatchesCart(&d, items) {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}

// scopeMatchesCart reports whether the discount's scope intersects the cart.
func scopeMatchesCart(d *Discount, items []cart.Item) bool {
	switch d.Scope() {
	case ScopeGlobal:
		return true
	case ScopeProduct:
		for _, it := range items {
			if it.ProductID == d.ProductID {
				return true
			}
		}
	case ScopeCategory:
		for _, it := range items {
			if it.CategoryID == d.CategoryID {
				return true
			}
		}
	}
	return false
}
