package discount

import (
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/cart"
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Applied is the result of resolving one discount against a cart: the
// computed monetary amount and the product lines it touched.
type Applied struct {
	DiscountID  string
	Code        string
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	ProductIDs  []string
}

// Calculate computes the monetary effect of one discount against the cart
// and the remaining discountable total (subtotal minus amounts already
// consumed by earlier discounts in the sequence). It returns the applied
// discount and the updated remaining total.
//
// Calculation never fails: an inapplicable discount yields a zero amount
// and leaves the remaining total untouched. Every amount is clamped to
// [0, remaining].
func Calculate(d *Discount, items []cart.Item, remaining decimal.Decimal) (Applied, decimal.Decimal) {
	applied := Applied{
		DiscountID:  d.ID,
		Code:        d.CouponCode,
		Kind:        d.Kind,
		Amount:      decimal.Zero,
		Description: d.Description,
	}

	var amount decimal.Decimal
	switch d.Kind {
	case KindPercentage:
		amount, applied.ProductIDs = percentageAmount(d, items, remaining)
	case KindFixed:
		// Fixed amounts apply across the whole cart regardless of scope.
		amount = decimal.Min(d.Value, remaining)
	case KindBuy2Pay1:
		amount, applied.ProductIDs = buy2Pay1Amount(d, items)
	case KindBuy3Pay2:
		amount, applied.ProductIDs = buy3Pay2Amount(d, items)
	case KindCombo:
		// Bundle pricing is unspecified; combo discounts are a recognized
		// no-op until product rules exist.
		amount = decimal.Zero
	}

	amount = clamp(amount, remaining)
	if amount.IsZero() {
		// Skipped, not an error. Drop the touched lines so callers do not
		// report an effect that was never applied.
		applied.ProductIDs = nil
		return applied, remaining
	}

	applied.Amount = amount
	return applied, remaining.Sub(amount)
}

// percentageAmount resolves the percentage base by scope: the matching
// line's subtotal for a product scope, the summed subtotals of matching
// lines for a category scope, and the remaining total when unscoped.
func percentageAmount(d *Discount, items []cart.Item, remaining decimal.Decimal) (decimal.Decimal, []string) {
	rate := d.Value.Div(hundred)

	switch d.Scope() {
	case ScopeProduct:
		for _, it := range items {
			if it.ProductID == d.ProductID {
				line := it.Subtotal()
				return decimal.Min(line.Mul(rate), line), []string{it.ProductID}
			}
		}
		return decimal.Zero, nil

	case ScopeCategory:
		base := decimal.Zero
		var ids []string
		for _, it := range items {
			if it.CategoryID == d.CategoryID {
				base = base.Add(it.Subtotal())
				ids = append(ids, it.ProductID)
			}
		}
		return base.Mul(rate), ids

	default:
		return remaining.Mul(rate), nil
	}
}

// buy2Pay1Amount halves the entire line subtotal of the scoped product when
// it appears with quantity >= 2. Halving the whole line rather than one
// paired unit is the established behavior; see the catalog docs before
// changing it.
func buy2Pay1Amount(d *Discount, items []cart.Item) (decimal.Decimal, []string) {
	if d.ProductID == "" {
		return decimal.Zero, nil
	}
	for _, it := range items {
		if it.ProductID == d.ProductID && it.Quantity >= 2 {
			return it.Subtotal().Mul(half), []string{it.ProductID}
		}
	}
	return decimal.Zero, nil
}

// buy3Pay2Amount grants one free unit per complete triple of the scoped
// product: floor(quantity / 3) * unit price.
func buy3Pay2Amount(d *Discount, items []cart.Item) (decimal.Decimal, []string) {
	if d.ProductID == "" {
		return decimal.Zero, nil
	}
	for _, it := range items {
		if it.ProductID == d.ProductID && it.Quantity >= 3 {
			free := decimal.NewFromInt(int64(it.Quantity / 3))
			return free.Mul(it.UnitPrice), []string{it.ProductID}
		}
	}
	return decimal.Zero, nil
}

// clamp bounds amount to [0, remaining].
func clamp(amount, remaining decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, remaining)
}
