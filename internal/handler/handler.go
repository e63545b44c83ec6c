// Package handler is the thin HTTP boundary over the checkout service. It
// converts wire requests to domain calls and maps domain errors onto the
// failure taxonomy; all business logic lives in the domain packages.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/selldesk/pos-core/internal/domain/checkout"
	"github.com/selldesk/pos-core/internal/domain/discount"
	"github.com/selldesk/pos-core/internal/domain/product"
	"github.com/selldesk/pos-core/internal/domain/sale"
)

// Handler serves the checkout and catalog endpoints.
type Handler struct {
	checkout *checkout.Service
	products product.Repository
}

// New constructs a Handler over the checkout service and product catalog.
func New(svc *checkout.Service, products product.Repository) *Handler {
	return &Handler{checkout: svc, products: products}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /api/checkout/quote", h.Quote)
	mux.HandleFunc("POST /api/checkout/commit", h.Commit)
	mux.HandleFunc("GET /api/sales/{id}", h.GetSale)
}

// writeJSON writes an encoded body with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(code)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// mapError translates domain errors to HTTP responses. Commit failures stay
// opaque to the client; the full cause is logged by the caller.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		couponErr *discount.CouponError
		qtyErr    *checkout.InvalidQuantityError
		nfErr     *checkout.ProductNotFoundError
		stockErr  *checkout.InsufficientStockError
	)

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusBadRequest, "validation_error", qtyErr.Error())
	case errors.As(err, &nfErr):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", nfErr.Error())
	case errors.As(err, &couponErr):
		writeError(w, http.StatusUnprocessableEntity, "coupon_rejected", couponErr.Reason.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, "insufficient_stock", stockErr.Error())
	case errors.Is(err, product.ErrInsufficientStock):
		// The guarded decrement lost the race after the advisory pre-check
		// passed; the whole transaction was rolled back.
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, discount.ErrUsageLimitReached):
		writeError(w, http.StatusConflict, "coupon_rejected", discount.ErrUsageLimitReached.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, sale.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "sale not found")
	default:
		zctx.From(r.Context()).Error("checkout request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "commit_failed", "request could not be completed")
	}
}
