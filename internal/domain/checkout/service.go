// Package checkout orchestrates the quote and commit flow: cart validation,
// server-side price resolution, discount quoting, the advisory stock
// pre-check, and the handoff to the atomic sale commit.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/selldesk/pos-core/internal/domain/cart"
	"github.com/selldesk/pos-core/internal/domain/discount"
	"github.com/selldesk/pos-core/internal/domain/product"
	"github.com/selldesk/pos-core/internal/domain/sale"
)

// ErrEmptyCart is returned when a request carries no items.
var ErrEmptyCart = discount.ErrEmptyCart

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError names the offending product and the quantity
// available at check time. It comes from the advisory pre-check and is
// retryable: the caller can adjust the cart and try again.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ItemRequest is one requested line: product and quantity. Unit prices and
// categories are resolved server-side from the catalog, never trusted from
// the client.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// QuoteRequest holds the input for computing a discount breakdown.
type QuoteRequest struct {
	Items       []ItemRequest
	CouponCodes []string
}

// QuoteResult pairs the resolved cart with its discount outcome.
type QuoteResult struct {
	Cart    []cart.Item
	Outcome *discount.Outcome
}

// CommitRequest holds the input for finalizing a sale: the resolved cart,
// the final discount outcome, and payment metadata.
type CommitRequest struct {
	Cart          []cart.Item
	Outcome       *discount.Outcome
	PaymentMethod string
	CashierID     string
}

// Service encapsulates the checkout business logic.
type Service struct {
	products product.Repository
	engine   *discount.Engine
	sales    sale.Repository

	tracer    trace.Tracer
	committed metric.Int64Counter
}

// NewService creates a checkout Service. Telemetry providers default to the
// otel globals; pass explicit providers from the application wiring.
func NewService(
	products product.Repository,
	engine *discount.Engine,
	sales sale.Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	committed, err := mp.Meter("checkout").Int64Counter("pos.sales.committed",
		metric.WithDescription("Number of successfully committed sales"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sales counter")
	}

	return &Service{
		products:  products,
		engine:    engine,
		sales:     sales,
		tracer:    tp.Tracer("checkout"),
		committed: committed,
	}, nil
}

// Quote validates the cart, resolves products in a single batch, and runs
// the discount engine. It is read-only.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	items, err := s.resolveCart(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Quote(ctx, items, req.CouponCodes)
	if err != nil {
		return nil, err
	}

	return &QuoteResult{Cart: items, Outcome: outcome}, nil
}

// Commit runs the advisory stock pre-check and executes the atomic sale
// commit. On success it returns the persisted sale; on commit failure the
// storage layer guarantees no partial state survives.
//
// The pre-check reads stock outside the transaction and exists for UX-grade
// errors only; the authoritative guard is the conditional decrement inside
// the commit.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*sale.Sale, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Commit")
	defer span.End()

	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	if req.Outcome == nil {
		return nil, errors.New("discount outcome is required")
	}

	for _, it := range req.Cart {
		available, err := s.products.AvailableStock(ctx, it.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "read stock for product %s", it.ProductID)
		}
		if it.Quantity > available {
			return nil, &InsufficientStockError{
				ProductID: it.ProductID,
				Available: available,
				Requested: it.Quantity,
			}
		}
	}

	sl := &sale.Sale{
		ID:            uuid.New().String(),
		Items:         req.Cart,
		Applied:       req.Outcome.Applied,
		Subtotal:      req.Outcome.Subtotal,
		TotalDiscount: req.Outcome.TotalDiscount,
		Total:         req.Outcome.Total,
		PaymentMethod: req.PaymentMethod,
		CashierID:     req.CashierID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.sales.Commit(ctx, sl); err != nil {
		return nil, err
	}

	s.committed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment.method", req.PaymentMethod),
	))

	return sl, nil
}

// Sale returns a committed sale by ID.
func (s *Service) Sale(ctx context.Context, id string) (*sale.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

// resolveCart validates quantities and resolves prices and categories from
// the product catalog in one batch query.
func (s *Service) resolveCart(ctx context.Context, items []ItemRequest) ([]cart.Item, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(items))
	for i, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		ids[i] = it.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	resolved := make([]cart.Item, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		resolved[i] = cart.Item{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  p.Price,
		}
	}
	return resolved, nil
}
