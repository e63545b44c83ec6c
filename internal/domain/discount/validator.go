package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// CouponValidator checks an explicitly entered code against cart state and
// discount rules.
type CouponValidator struct {
	repo Repository
	now  func() time.Time
}

// NewCouponValidator creates a CouponValidator backed by the given Repository.
func NewCouponValidator(repo Repository) *CouponValidator {
	return &CouponValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon by exact code match and checks it against the
// cart subtotal. Checks run in a fixed order and the first failing one is
// reported: ErrCodeNotFound, ErrInactive, ErrExpired, ErrBelowMinPurchase,
// ErrUsageLimitReached.
//
// Validation is read-only: it does not reserve or increment usage. Usage is
// consumed durably only during sale commit, where the guarded increment
// re-checks the cap, so a coupon that passes here can still fail at commit
// time under contention.
func (v *CouponValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	d, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !d.Active {
		return nil, ErrInactive
	}
	if !d.ValidAt(v.now()) {
		return nil, ErrExpired
	}
	if subtotal.LessThan(d.MinPurchase) {
		return nil, ErrBelowMinPurchase
	}
	if d.UsageExhausted() {
		return nil, ErrUsageLimitReached
	}

	return d, nil
}
