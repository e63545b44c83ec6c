package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo is an in-memory discount.Repository for unit tests.
type mockRepo struct {
	discounts []Discount
	findErr   error
	listErr   error
}

func (m *mockRepo) Create(_ context.Context, d *Discount) error {
	m.discounts = append(m.discounts, *d)
	return nil
}

func (m *mockRepo) Update(_ context.Context, d *Discount) error {
	for i := range m.discounts {
		if m.discounts[i].ID == d.ID {
			m.discounts[i] = *d
			return nil
		}
	}
	return ErrCodeNotFound
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Discount, error) {
	for i := range m.discounts {
		if m.discounts[i].ID == id {
			d := m.discounts[i]
			return &d, nil
		}
	}
	return nil, ErrCodeNotFound
}

func (m *mockRepo) ListAutomatic(_ context.Context) ([]Discount, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Discount
	for _, d := range m.discounts {
		if d.Active && !d.IsCoupon() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Discount, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.discounts {
		if m.discounts[i].CouponCode == code {
			d := m.discounts[i]
			return &d, nil
		}
	}
	return nil, ErrCodeNotFound
}

func (m *mockRepo) SetActive(_ context.Context, id string, active bool) error {
	for i := range m.discounts {
		if m.discounts[i].ID == id {
			m.discounts[i].Active = active
			return nil
		}
	}
	return ErrCodeNotFound
}

func (m *mockRepo) IncrementUses(_ context.Context, id string) error {
	for i := range m.discounts {
		if m.discounts[i].ID == id {
			if m.discounts[i].UsageExhausted() {
				return ErrUsageLimitReached
			}
			m.discounts[i].Uses++
			return nil
		}
	}
	return ErrCodeNotFound
}

func TestCouponValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name     string
		coupon   Discount
		code     string
		subtotal decimal.Decimal
		wantErr  error
	}{
		{
			name: "valid coupon",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10",
			},
			code:     "SAVE10",
			subtotal: dec(100),
		},
		{
			name: "unknown code",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10",
			},
			code:     "BOGUS",
			subtotal: dec(100),
			wantErr:  ErrCodeNotFound,
		},
		{
			name: "inactive coupon",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: false, CouponCode: "SAVE10",
			},
			code:     "SAVE10",
			subtotal: dec(100),
			wantErr:  ErrInactive,
		},
		{
			name: "expired coupon",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", ValidUntil: &pastTime,
			},
			code:     "SAVE10",
			subtotal: dec(100),
			wantErr:  ErrExpired,
		},
		{
			name: "not yet valid coupon",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", ValidFrom: &futureTime,
			},
			code:     "SAVE10",
			subtotal: dec(100),
			wantErr:  ErrExpired,
		},
		{
			name: "below minimum purchase",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", MinPurchase: dec(50),
			},
			code:     "SAVE10",
			subtotal: dec(49),
			wantErr:  ErrBelowMinPurchase,
		},
		{
			name: "minimum purchase met exactly",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", MinPurchase: dec(50),
			},
			code:     "SAVE10",
			subtotal: dec(50),
		},
		{
			name: "usage limit reached",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", MaxUses: 1, Uses: 1,
			},
			code:     "SAVE10",
			subtotal: dec(100),
			wantErr:  ErrUsageLimitReached,
		},
		{
			name: "usage under limit",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", MaxUses: 2, Uses: 1,
			},
			code:     "SAVE10",
			subtotal: dec(100),
		},
		{
			name: "unlimited uses",
			coupon: Discount{
				ID: "d1", Kind: KindPercentage, Value: dec(10),
				Active: true, CouponCode: "SAVE10", MaxUses: 0, Uses: 9999,
			},
			code:     "SAVE10",
			subtotal: dec(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewCouponValidator(&mockRepo{discounts: []Discount{tt.coupon}})
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.subtotal)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.coupon.ID, got.ID)
		})
	}
}

// The first failing check wins: an inactive, expired, capped-out coupon on
// a too-small cart reports inactive, nothing else.
func TestCouponValidator_FirstFailureWins(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)

	repo := &mockRepo{discounts: []Discount{{
		ID: "d1", Kind: KindPercentage, Value: dec(10),
		Active: false, CouponCode: "DEAD",
		ValidUntil:  &pastTime,
		MinPurchase: dec(1000),
		MaxUses:     1, Uses: 1,
	}}}

	v := NewCouponValidator(repo)
	v.now = func() time.Time { return fixedNow }

	_, err := v.Validate(context.Background(), "DEAD", dec(10))
	require.ErrorIs(t, err, ErrInactive)
}

func TestCouponValidator_DoesNotConsumeUsage(t *testing.T) {
	repo := &mockRepo{discounts: []Discount{{
		ID: "d1", Kind: KindFixed, Value: dec(5),
		Active: true, CouponCode: "KEEP", MaxUses: 10, Uses: 3,
	}}}

	v := NewCouponValidator(repo)
	_, err := v.Validate(context.Background(), "KEEP", dec(100))

	require.NoError(t, err)
	assert.Equal(t, 3, repo.discounts[0].Uses, "validation must not consume usage")
}

func TestCouponValidator_RepoErrorIsWrapped(t *testing.T) {
	repo := &mockRepo{findErr: errors.New("db down")}

	v := NewCouponValidator(repo)
	_, err := v.Validate(context.Background(), "ANY", dec(100))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}
