package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/selldesk/pos-core/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, category_id, price, stock, active
		FROM products WHERE active = TRUE ORDER BY id`

	getProductByIDSQL = `SELECT id, name, category_id, price, stock, active
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, category_id, price, stock, active
		FROM products WHERE id = ANY($1)`

	availableStockSQL = `SELECT stock FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all active catalog products.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	ps, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return ps, nil
}

// GetByID returns a single product. Returns product.ErrNotFound when the
// product does not exist.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs batch-fetches products in a single query. Missing IDs are simply
// absent from the result; the caller decides whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}

	ps, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}
	return ps, nil
}

// AvailableStock reads the current stock level for a product. The value is
// advisory: it is read outside any transaction and can be stale by the time
// a sale commits.
func (r *ProductRepository) AvailableStock(ctx context.Context, id string) (int, error) {
	var stock int32
	err := r.pool.QueryRow(ctx, availableStockSQL, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("reading stock for product %q: %w", id, err)
	}
	return int(stock), nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p          product.Product
		categoryID *string
		price      decimal.Decimal
		stock      int32
	)
	err := row.Scan(&p.ID, &p.Name, &categoryID, &price, &stock, &p.Active)
	p.CategoryID = deref(categoryID)
	p.Price = price
	p.Stock = int(stock)
	return p, err
}
