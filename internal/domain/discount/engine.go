package discount

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/cart"
)

// ErrEmptyCart is returned when a quote is requested for a cart with no items.
var ErrEmptyCart = errors.New("cart has no items")

// CouponError wraps a rejection reason together with the offending code so
// callers can surface both to the end user.
type CouponError struct {
	Code   string
	Reason error
}

func (e *CouponError) Error() string {
	return "coupon " + e.Code + ": " + e.Reason.Error()
}

func (e *CouponError) Unwrap() error {
	return e.Reason
}

// isRejectionReason distinguishes user-facing rejection reasons from
// infrastructure failures during validation.
func isRejectionReason(err error) bool {
	for _, reason := range []error{
		ErrCodeNotFound, ErrInactive, ErrExpired,
		ErrBelowMinPurchase, ErrUsageLimitReached,
	} {
		if errors.Is(err, reason) {
			return true
		}
	}
	return false
}

// Outcome is the aggregate result of resolving all discounts against a cart.
type Outcome struct {
	Applied       []Applied
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	Total         decimal.Decimal
}

// Engine runs the full quote pipeline: eligibility filtering, coupon
// validation, precedence ordering, and sequential amount calculation.
type Engine struct {
	selector  *Selector
	validator *CouponValidator
}

// NewEngine creates an Engine over the given catalog repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{
		selector:  NewSelector(repo),
		validator: NewCouponValidator(repo),
	}
}

// Quote computes the discount breakdown and final total for a cart plus any
// explicitly entered coupon codes. It is read-only; durable effects happen
// only at sale commit.
//
// Rejected coupons abort the quote with a *CouponError rather than being
// silently dropped: the cashier entered the code on purpose.
func (e *Engine) Quote(ctx context.Context, items []cart.Item, couponCodes []string) (*Outcome, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := cart.Subtotal(items)

	eligible, err := e.selector.Automatic(ctx, items)
	if err != nil {
		return nil, errors.Wrap(err, "select automatic discounts")
	}

	for _, code := range couponCodes {
		d, err := e.validator.Validate(ctx, code, subtotal)
		switch {
		case err == nil:
			eligible = append(eligible, *d)
		case isRejectionReason(err):
			return nil, &CouponError{Code: code, Reason: err}
		default:
			return nil, errors.Wrapf(err, "validate coupon %q", code)
		}
	}

	ordered := OrderForApplication(eligible)

	outcome := &Outcome{
		Subtotal: subtotal,
		Applied:  make([]Applied, 0, len(ordered)),
	}

	remaining := subtotal
	for i := range ordered {
		applied, rest := Calculate(&ordered[i], items, remaining)
		if applied.Amount.IsZero() {
			continue
		}
		outcome.Applied = append(outcome.Applied, applied)
		remaining = rest
	}

	outcome.TotalDiscount = subtotal.Sub(remaining)
	outcome.Total = remaining
	if outcome.Total.IsNegative() {
		outcome.Total = decimal.Zero
	}

	return outcome, nil
}
