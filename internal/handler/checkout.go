package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/selldesk/pos-core/internal/domain/checkout"
	"github.com/selldesk/pos-core/internal/domain/discount"
	"github.com/selldesk/pos-core/internal/domain/sale"
)

// checkoutRequest is the wire shape shared by quote and commit.
type checkoutRequest struct {
	Items         []checkout.ItemRequest
	CouponCodes   []string
	PaymentMethod string
	CashierID     string
}

// Quote computes the discount breakdown for a cart without side effects.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheckoutRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	res, err := h.checkout.Quote(r.Context(), checkout.QuoteRequest{
		Items:       req.Items,
		CouponCodes: req.CouponCodes,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOutcome(&e, res.Outcome)
	writeJSON(w, http.StatusOK, &e)
}

// Commit quotes the cart and finalizes the sale atomically.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCheckoutRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}
	if req.PaymentMethod == "" || req.CashierID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "payment_method and cashier_id are required")
		return
	}

	quoted, err := h.checkout.Quote(r.Context(), checkout.QuoteRequest{
		Items:       req.Items,
		CouponCodes: req.CouponCodes,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	committed, err := h.checkout.Commit(r.Context(), checkout.CommitRequest{
		Cart:          quoted.Cart,
		Outcome:       quoted.Outcome,
		PaymentMethod: req.PaymentMethod,
		CashierID:     req.CashierID,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSale(&e, committed)
	writeJSON(w, http.StatusCreated, &e)
}

// GetSale returns a committed sale by ID.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.checkout.Sale(r.Context(), r.PathValue("id"))
	if err != nil {
		mapError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeSale(&e, s)
	writeJSON(w, http.StatusOK, &e)
}

func decodeCheckoutRequest(body io.Reader) (checkoutRequest, error) {
	var req checkoutRequest

	data, err := io.ReadAll(body)
	if err != nil {
		return req, err
	}

	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item checkout.ItemRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "product_id":
						v, err := d.Str()
						item.ProductID = v
						return err
					case "quantity":
						v, err := d.Int()
						item.Quantity = v
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "coupon_codes":
			return d.Arr(func(d *jx.Decoder) error {
				code, err := d.Str()
				if err != nil {
					return err
				}
				req.CouponCodes = append(req.CouponCodes, code)
				return nil
			})
		case "payment_method":
			v, err := d.Str()
			req.PaymentMethod = v
			return err
		case "cashier_id":
			v, err := d.Str()
			req.CashierID = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

func encodeOutcome(e *jx.Encoder, out *discount.Outcome) {
	e.ObjStart()
	e.FieldStart("subtotal")
	e.Str(out.Subtotal.Round(2).String())
	e.FieldStart("total_discount")
	e.Str(out.TotalDiscount.Round(2).String())
	e.FieldStart("total")
	e.Str(out.Total.Round(2).String())
	e.FieldStart("applied")
	e.ArrStart()
	for _, ad := range out.Applied {
		e.ObjStart()
		e.FieldStart("discount_id")
		e.Str(ad.DiscountID)
		if ad.Code != "" {
			e.FieldStart("coupon_code")
			e.Str(ad.Code)
		}
		e.FieldStart("kind")
		e.Str(string(ad.Kind))
		e.FieldStart("amount")
		e.Str(ad.Amount.Round(2).String())
		e.FieldStart("description")
		e.Str(ad.Description)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeSale(e *jx.Encoder, s *sale.Sale) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.ID)
	e.FieldStart("subtotal")
	e.Str(s.Subtotal.Round(2).String())
	e.FieldStart("total_discount")
	e.Str(s.TotalDiscount.Round(2).String())
	e.FieldStart("total")
	e.Str(s.Total.Round(2).String())
	e.FieldStart("payment_method")
	e.Str(s.PaymentMethod)
	e.FieldStart("cashier_id")
	e.Str(s.CashierID)
	e.FieldStart("voided")
	e.Bool(s.Voided)
	e.FieldStart("created_at")
	e.Str(s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range s.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.Round(2).String())
		e.FieldStart("subtotal")
		e.Str(it.Subtotal().Round(2).String())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("discounts")
	e.ArrStart()
	for _, ad := range s.Applied {
		e.ObjStart()
		e.FieldStart("discount_id")
		e.Str(ad.DiscountID)
		e.FieldStart("amount")
		e.Str(ad.Amount.Round(2).String())
		e.FieldStart("description")
		e.Str(ad.Description)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
