package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/cart"
	"github.com/selldesk/pos-core/internal/domain/discount"
	"github.com/selldesk/pos-core/internal/domain/product"
	"github.com/selldesk/pos-core/internal/domain/sale"
)

const (
	insertSaleSQL = `INSERT INTO sales
		(id, items, subtotal, discount_total, total, payment_method, cashier_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertSaleItemSQL = `INSERT INTO sale_items
		(sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)`

	// Guarded relative decrement: refuses to drive stock negative.
	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	insertSaleDiscountSQL = `INSERT INTO sale_discounts
		(sale_id, discount_id, amount, description)
		VALUES ($1, $2, $3, $4)`

	// Guarded relative increment: refuses to pass the usage cap.
	incrementDiscountUsesSQL = `UPDATE discounts SET uses = uses + 1, updated_at = now()
		WHERE id = $1 AND (max_uses = 0 OR uses < max_uses)`

	getSaleByIDSQL = `SELECT id, items, subtotal, discount_total, total,
		payment_method, cashier_id, voided, created_at
		FROM sales WHERE id = $1`

	getSaleDiscountsSQL = `SELECT sd.discount_id, d.kind, COALESCE(d.coupon_code, ''),
		sd.amount, sd.description
		FROM sale_discounts sd JOIN discounts d ON d.id = sd.discount_id
		WHERE sd.sale_id = $1 ORDER BY sd.id`
)

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL. Commit is
// the sale commit coordinator's storage side: one transaction covering the
// sale header, line items, stock decrements, usage records, and usage
// counters.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Commit executes the atomic unit of work. All steps succeed or none take
// effect:
//
//  1. Insert the sale header with the items snapshot.
//  2. Per line: insert the line item, then decrement stock by the line
//     quantity. A decrement matching zero rows means another sale took the
//     stock first; the transaction aborts with product.ErrInsufficientStock.
//  3. Per applied discount: insert the usage record, then increment the
//     usage counter. A guarded increment matching zero rows means the cap
//     was exhausted after validation; the transaction aborts with
//     discount.ErrUsageLimitReached.
//  4. Commit.
//
// Any failure rolls back everything; sale.ErrCommitFailed wraps causes the
// caller cannot act on.
func (r *SaleRepository) Commit(ctx context.Context, s *sale.Sale) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(sale.ErrCommitFailed, err.Error())
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	itemsJSON := encodeItems(s.Items)

	_, err = tx.Exec(ctx, insertSaleSQL,
		s.ID, itemsJSON, s.Subtotal, s.TotalDiscount, s.Total,
		s.PaymentMethod, s.CashierID, s.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(sale.ErrCommitFailed, fmt.Sprintf("insert sale header: %s", err))
	}

	for _, it := range s.Items {
		_, err = tx.Exec(ctx, insertSaleItemSQL,
			s.ID, it.ProductID, int32(it.Quantity), it.UnitPrice, it.Subtotal(),
		)
		if err != nil {
			return errors.Wrap(sale.ErrCommitFailed, fmt.Sprintf("insert line item %s: %s", it.ProductID, err))
		}

		tag, err := tx.Exec(ctx, decrementStockSQL, it.ProductID, int32(it.Quantity))
		if err != nil {
			return errors.Wrap(sale.ErrCommitFailed, fmt.Sprintf("decrement stock %s: %s", it.ProductID, err))
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(product.ErrInsufficientStock, "product %s", it.ProductID)
		}
	}

	for _, ad := range s.Applied {
		_, err = tx.Exec(ctx, insertSaleDiscountSQL,
			s.ID, ad.DiscountID, ad.Amount, ad.Description,
		)
		if err != nil {
			return errors.Wrap(sale.ErrCommitFailed, fmt.Sprintf("insert usage record %s: %s", ad.DiscountID, err))
		}

		tag, err := tx.Exec(ctx, incrementDiscountUsesSQL, ad.DiscountID)
		if err != nil {
			return errors.Wrap(sale.ErrCommitFailed, fmt.Sprintf("increment uses %s: %s", ad.DiscountID, err))
		}
		if tag.RowsAffected() == 0 {
			return errors.Wrapf(discount.ErrUsageLimitReached, "discount %s", ad.DiscountID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(sale.ErrCommitFailed, err.Error())
	}
	return nil
}

// GetByID returns a committed sale with its items snapshot and applied
// discounts.
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	var (
		s         sale.Sale
		itemsJSON []byte
		createdAt time.Time
	)
	err := r.pool.QueryRow(ctx, getSaleByIDSQL, id).Scan(
		&s.ID, &itemsJSON, &s.Subtotal, &s.TotalDiscount, &s.Total,
		&s.PaymentMethod, &s.CashierID, &s.Voided, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}
	s.CreatedAt = createdAt

	s.Items, err = decodeItems(itemsJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding items for sale %q: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, getSaleDiscountsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting discounts for sale %q: %w", id, err)
	}
	s.Applied, err = pgx.CollectRows(rows, scanAppliedDiscount)
	if err != nil {
		return nil, fmt.Errorf("getting discounts for sale %q: %w", id, err)
	}

	return &s, nil
}

func scanAppliedDiscount(row pgx.CollectableRow) (discount.Applied, error) {
	var (
		ad     discount.Applied
		kind   string
		amount decimal.Decimal
	)
	err := row.Scan(&ad.DiscountID, &kind, &ad.Code, &amount, &ad.Description)
	ad.Kind = discount.Kind(kind)
	ad.Amount = amount
	return ad, err
}

// encodeItems serializes the cart snapshot for the JSONB column.
func encodeItems(items []cart.Item) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("category_id")
		e.Str(it.CategoryID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeItems(data []byte) ([]cart.Item, error) {
	d := jx.DecodeBytes(data)

	var items []cart.Item
	err := d.Arr(func(d *jx.Decoder) error {
		var it cart.Item
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "product_id":
				v, err := d.Str()
				it.ProductID = v
				return err
			case "category_id":
				v, err := d.Str()
				it.CategoryID = v
				return err
			case "quantity":
				v, err := d.Int()
				it.Quantity = v
				return err
			case "unit_price":
				v, err := d.Str()
				if err != nil {
					return err
				}
				price, err := decimal.NewFromString(v)
				it.UnitPrice = price
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}
