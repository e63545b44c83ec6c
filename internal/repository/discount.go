package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/discount"
)

const (
	discountColumns = `id, name, description, kind, value, valid_from, valid_until,
		active, min_purchase, product_id, category_id, coupon_code, max_uses, uses`

	insertDiscountSQL = `INSERT INTO discounts
		(id, name, description, kind, value, valid_from, valid_until,
		 active, min_purchase, product_id, category_id, coupon_code, max_uses, uses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateDiscountSQL = `UPDATE discounts SET
		name = $2, description = $3, kind = $4, value = $5, valid_from = $6,
		valid_until = $7, active = $8, min_purchase = $9, product_id = $10,
		category_id = $11, coupon_code = $12, max_uses = $13, updated_at = now()
		WHERE id = $1`

	getDiscountByIDSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	listAutomaticSQL = `SELECT ` + discountColumns + ` FROM discounts
		WHERE active = TRUE AND coupon_code IS NULL`

	findByCodeSQL = `SELECT ` + discountColumns + ` FROM discounts
		WHERE UPPER(coupon_code) = UPPER($1)`

	setDiscountActiveSQL = `UPDATE discounts SET active = $2, updated_at = now() WHERE id = $1`

	// Guarded relative increment: never read-then-write, and never past the cap.
	incrementUsesSQL = `UPDATE discounts SET uses = uses + 1, updated_at = now()
		WHERE id = $1 AND (max_uses = 0 OR uses < max_uses)`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// Create inserts a new discount record.
func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, insertDiscountSQL,
		d.ID, d.Name, d.Description, string(d.Kind), d.Value,
		d.ValidFrom, d.ValidUntil, d.Active, d.MinPurchase,
		nullable(d.ProductID), nullable(d.CategoryID), nullable(d.CouponCode),
		int32(d.MaxUses), int32(d.Uses),
	)
	if err != nil {
		return fmt.Errorf("creating discount %q: %w", d.ID, err)
	}
	return nil
}

// Update rewrites a discount's definition. The usage counter is not
// touched here; it only moves through IncrementUses.
func (r *DiscountRepository) Update(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, updateDiscountSQL,
		d.ID, d.Name, d.Description, string(d.Kind), d.Value,
		d.ValidFrom, d.ValidUntil, d.Active, d.MinPurchase,
		nullable(d.ProductID), nullable(d.CategoryID), nullable(d.CouponCode),
		int32(d.MaxUses),
	)
	if err != nil {
		return fmt.Errorf("updating discount %q: %w", d.ID, err)
	}
	return nil
}

// GetByID returns a discount by its ID.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}
	return &d, nil
}

// ListAutomatic returns active discounts with no coupon code. Validity
// windows and minimum purchase are checked by the eligibility filter, not
// here, so the list stays cacheable.
func (r *DiscountRepository) ListAutomatic(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listAutomaticSQL)
	if err != nil {
		return nil, fmt.Errorf("listing automatic discounts: %w", err)
	}

	ds, err := pgx.CollectRows(rows, scanDiscount)
	if err != nil {
		return nil, fmt.Errorf("listing automatic discounts: %w", err)
	}
	return ds, nil
}

// FindByCode looks up a coupon-gated discount by its code (case-insensitive
// exact match). Returns discount.ErrCodeNotFound when no discount carries
// the code. Active and validity checks belong to the validator.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, findByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

// SetActive soft-enables or soft-disables a discount.
func (r *DiscountRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.pool.Exec(ctx, setDiscountActiveSQL, id, active)
	if err != nil {
		return fmt.Errorf("setting discount %q active=%t: %w", id, active, err)
	}
	return nil
}

// IncrementUses atomically increments the usage counter while under the
// cap. Returns discount.ErrUsageLimitReached when the guard rejects the
// increment.
func (r *DiscountRepository) IncrementUses(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, incrementUsesSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing uses for discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrUsageLimitReached
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d           discount.Discount
		kind        string
		value       decimal.Decimal
		validFrom   *time.Time
		validUntil  *time.Time
		minPurchase decimal.Decimal
		productID   *string
		categoryID  *string
		couponCode  *string
		maxUses     int32
		uses        int32
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &kind, &value, &validFrom, &validUntil,
		&d.Active, &minPurchase, &productID, &categoryID, &couponCode,
		&maxUses, &uses,
	)
	d.Kind = discount.Kind(kind)
	d.Value = value
	d.ValidFrom = validFrom
	d.ValidUntil = validUntil
	d.MinPurchase = minPurchase
	d.ProductID = deref(productID)
	d.CategoryID = deref(categoryID)
	d.CouponCode = deref(couponCode)
	d.MaxUses = int(maxUses)
	d.Uses = int(uses)
	return d, err
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
