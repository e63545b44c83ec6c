package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/selldesk/pos-core/internal/domain/product"
)

// ListProducts returns the active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range ps {
		encodeProduct(&e, &ps[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// GetProduct returns a single catalog product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, p)
	writeJSON(w, http.StatusOK, &e)
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	if p.CategoryID != "" {
		e.FieldStart("category_id")
		e.Str(p.CategoryID)
	}
	e.FieldStart("price")
	e.Str(p.Price.Round(2).String())
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("active")
	e.Bool(p.Active)
	e.ObjEnd()
}
