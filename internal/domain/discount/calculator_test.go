package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/selldesk/pos-core/internal/domain/cart"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestCalculate_Percentage(t *testing.T) {
	items := []cart.Item{
		{ProductID: "p1", CategoryID: "c1", Quantity: 2, UnitPrice: dec(10)}, // line 20
		{ProductID: "p2", CategoryID: "c1", Quantity: 1, UnitPrice: dec(30)}, // line 30
		{ProductID: "p3", CategoryID: "c2", Quantity: 1, UnitPrice: dec(50)}, // line 50
	}
	// subtotal 100

	tests := []struct {
		name          string
		d             Discount
		remaining     decimal.Decimal
		wantAmount    decimal.Decimal
		wantRemaining decimal.Decimal
		wantProducts  []string
	}{
		{
			name:          "unscoped percentage applies to remaining total",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(10)},
			remaining:     dec(100),
			wantAmount:    dec(10),
			wantRemaining: dec(90),
		},
		{
			name:          "unscoped percentage uses remaining, not subtotal",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(50)},
			remaining:     dec(40),
			wantAmount:    dec(20),
			wantRemaining: dec(20),
		},
		{
			name:          "product-scoped percentage uses that line's subtotal",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(50), ProductID: "p2"},
			remaining:     dec(100),
			wantAmount:    dec(15),
			wantRemaining: dec(85),
			wantProducts:  []string{"p2"},
		},
		{
			name:          "product-scoped percentage capped at line subtotal",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(150), ProductID: "p1"},
			remaining:     dec(100),
			wantAmount:    dec(20),
			wantRemaining: dec(80),
			wantProducts:  []string{"p1"},
		},
		{
			name:          "category-scoped percentage sums matching lines",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(10), CategoryID: "c1"},
			remaining:     dec(100),
			wantAmount:    dec(5), // 10% of 20+30
			wantRemaining: dec(95),
			wantProducts:  []string{"p1", "p2"},
		},
		{
			name:          "product not in cart yields zero and is skipped",
			d:             Discount{ID: "d1", Kind: KindPercentage, Value: dec(10), ProductID: "p9"},
			remaining:     dec(100),
			wantAmount:    decimal.Zero,
			wantRemaining: dec(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, remaining := Calculate(&tt.d, items, tt.remaining)

			assert.True(t, tt.wantAmount.Equal(applied.Amount),
				"amount: want %s, got %s", tt.wantAmount, applied.Amount)
			assert.True(t, tt.wantRemaining.Equal(remaining),
				"remaining: want %s, got %s", tt.wantRemaining, remaining)
			assert.Equal(t, tt.wantProducts, applied.ProductIDs)
		})
	}
}

func TestCalculate_Fixed(t *testing.T) {
	items := []cart.Item{
		{ProductID: "p1", Quantity: 1, UnitPrice: dec(30)},
	}

	t.Run("fixed amount below remaining", func(t *testing.T) {
		d := Discount{ID: "d1", Kind: KindFixed, Value: dec(5)}
		applied, remaining := Calculate(&d, items, dec(30))
		assert.True(t, dec(5).Equal(applied.Amount))
		assert.True(t, dec(25).Equal(remaining))
	})

	t.Run("fixed amount clamped to remaining", func(t *testing.T) {
		d := Discount{ID: "d1", Kind: KindFixed, Value: dec(50)}
		applied, remaining := Calculate(&d, items, dec(30))
		assert.True(t, dec(30).Equal(applied.Amount))
		assert.True(t, remaining.IsZero())
	})

	t.Run("fixed amount ignores scope", func(t *testing.T) {
		d := Discount{ID: "d1", Kind: KindFixed, Value: dec(5), ProductID: "p9"}
		applied, _ := Calculate(&d, items, dec(30))
		assert.True(t, dec(5).Equal(applied.Amount))
	})
}

func TestCalculate_Buy2Pay1(t *testing.T) {
	t.Run("quantity 2 halves the whole line", func(t *testing.T) {
		items := []cart.Item{{ProductID: "p1", Quantity: 2, UnitPrice: dec(20)}}
		d := Discount{ID: "d1", Kind: KindBuy2Pay1, ProductID: "p1"}

		applied, remaining := Calculate(&d, items, dec(40))
		assert.True(t, dec(20).Equal(applied.Amount), "got %s", applied.Amount)
		assert.True(t, dec(20).Equal(remaining))
		assert.Equal(t, []string{"p1"}, applied.ProductIDs)
	})

	t.Run("quantity 5 still halves the whole line", func(t *testing.T) {
		// Established behavior: the entire line subtotal is halved, not
		// only the cost of paired units.
		items := []cart.Item{{ProductID: "p1", Quantity: 5, UnitPrice: dec(10)}}
		d := Discount{ID: "d1", Kind: KindBuy2Pay1, ProductID: "p1"}

		applied, _ := Calculate(&d, items, dec(50))
		assert.True(t, dec(25).Equal(applied.Amount), "got %s", applied.Amount)
	})

	t.Run("quantity 1 is skipped", func(t *testing.T) {
		items := []cart.Item{{ProductID: "p1", Quantity: 1, UnitPrice: dec(20)}}
		d := Discount{ID: "d1", Kind: KindBuy2Pay1, ProductID: "p1"}

		applied, remaining := Calculate(&d, items, dec(20))
		assert.True(t, applied.Amount.IsZero())
		assert.True(t, dec(20).Equal(remaining))
		assert.Nil(t, applied.ProductIDs)
	})

	t.Run("unscoped buy2pay1 is skipped", func(t *testing.T) {
		items := []cart.Item{{ProductID: "p1", Quantity: 2, UnitPrice: dec(20)}}
		d := Discount{ID: "d1", Kind: KindBuy2Pay1}

		applied, _ := Calculate(&d, items, dec(40))
		assert.True(t, applied.Amount.IsZero())
	})
}

func TestCalculate_Buy3Pay2(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		unit     float64
		want     float64
	}{
		{"quantity 3 gives one free unit", 3, 5, 5},
		{"quantity 7 gives two free units", 7, 5, 10},
		{"quantity 9 gives three free units", 9, 2, 6},
		{"quantity 2 is skipped", 2, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := []cart.Item{{ProductID: "p1", Quantity: tt.quantity, UnitPrice: dec(tt.unit)}}
			d := Discount{ID: "d1", Kind: KindBuy3Pay2, ProductID: "p1"}

			applied, _ := Calculate(&d, items, dec(1000))
			assert.True(t, dec(tt.want).Equal(applied.Amount),
				"want %v, got %s", tt.want, applied.Amount)
		})
	}
}

func TestCalculate_ComboIsNoOp(t *testing.T) {
	items := []cart.Item{{ProductID: "p1", Quantity: 4, UnitPrice: dec(10)}}
	d := Discount{ID: "d1", Kind: KindCombo, ProductID: "p1"}

	applied, remaining := Calculate(&d, items, dec(40))
	assert.True(t, applied.Amount.IsZero())
	assert.True(t, dec(40).Equal(remaining))
}

func TestCalculate_ClampsToRemaining(t *testing.T) {
	items := []cart.Item{{ProductID: "p1", Quantity: 2, UnitPrice: dec(20)}}
	d := Discount{ID: "d1", Kind: KindBuy2Pay1, ProductID: "p1"}

	// Earlier discounts already consumed most of the cart.
	applied, remaining := Calculate(&d, items, dec(7))
	assert.True(t, dec(7).Equal(applied.Amount))
	assert.True(t, remaining.IsZero())
}

func TestCalculate_ZeroRemainingSkips(t *testing.T) {
	items := []cart.Item{{ProductID: "p1", Quantity: 2, UnitPrice: dec(20)}}
	d := Discount{ID: "d1", Kind: KindPercentage, Value: dec(10)}

	applied, remaining := Calculate(&d, items, decimal.Zero)
	assert.True(t, applied.Amount.IsZero())
	assert.True(t, remaining.IsZero())
}
