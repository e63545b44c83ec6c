package discount

import (
	"sort"

	"github.com/shopspring/decimal"
)

// FixedAmountRank is the multiplier that normalizes fixed currency amounts
// against percentage points when breaking precedence ties. With the default
// of 100, a fixed discount generally outranks a small percentage.
var FixedAmountRank = decimal.NewFromInt(100)

// OrderForApplication orders eligible discounts (automatic and coupon) into
// the sequence they are applied in. It performs no calculation.
//
// Ordering key, most significant first:
//  1. Quantity-based promotions before value-based ones, so quantity promos
//     resolve against untouched line subtotals and are not shadowed by a
//     prior percentage reduction.
//  2. Specificity: product scope, then category scope, then global.
//  3. Larger normalized value first: percentage by its value, fixed by
//     value * FixedAmountRank.
func OrderForApplication(ds []Discount) []Discount {
	ordered := make([]Discount, len(ds))
	copy(ordered, ds)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]

		aq, bq := a.Kind.IsQuantityBased(), b.Kind.IsQuantityBased()
		if aq != bq {
			return aq
		}

		as, bs := scopeRank(a.Scope()), scopeRank(b.Scope())
		if as != bs {
			return as > bs
		}

		return normalizedValue(a).GreaterThan(normalizedValue(b))
	})

	return ordered
}

func scopeRank(s Scope) int {
	switch s {
	case ScopeProduct:
		return 2
	case ScopeCategory:
		return 1
	default:
		return 0
	}
}

// normalizedValue maps heterogeneous value magnitudes onto one comparison
// axis. Quantity-based kinds carry no meaningful value and compare as zero.
func normalizedValue(d *Discount) decimal.Decimal {
	switch d.Kind {
	case KindPercentage:
		return d.Value
	case KindFixed:
		return d.Value.Mul(FixedAmountRank)
	default:
		return decimal.Zero
	}
}
