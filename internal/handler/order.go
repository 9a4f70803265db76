package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/averlon/podstore/internal/domain/order"
	"github.com/averlon/podstore/internal/storage/postgres"
)

type addressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

func (a addressPayload) toAddress() order.Address {
	return order.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

type checkoutRequest struct {
	Email           string         `json:"email"`
	ShippingAddress addressPayload `json:"shipping_address"`
	BillingAddress  addressPayload `json:"billing_address"`
	PaymentMethod   string         `json:"payment_method"`
	Notes           string         `json:"notes"`
}

// placeOrder serves POST /api/checkout, converting the session cart into an
// order. The billing address defaults to the shipping address when omitted.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ShippingAddress.Line1) == "" {
		writeError(w, http.StatusBadRequest, "shipping address is required")
		return
	}
	billing := req.BillingAddress
	if billing.Line1 == "" {
		billing = req.ShippingAddress
	}

	sessionID := h.sessions.SessionID(w, r)
	o, err := h.checkout.Checkout(r.Context(), sessionID, order.CheckoutRequest{
		Email:           req.Email,
		ShippingAddress: req.ShippingAddress.toAddress(),
		BillingAddress:  billing.toAddress(),
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, true)
	writeJSON(w, http.StatusCreated, &e)
}

// listOrders serves GET /api/orders: the current session's order history,
// newest first.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.SessionID(w, r)

	orders, err := h.orders.ListBySession(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrderList(&e, orders)
	writeJSON(w, http.StatusOK, &e)
}

// getOrder serves GET /api/orders/{id}. Orders belonging to another session
// are reported as not found rather than forbidden, so order IDs cannot be
// probed.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.SessionID(w, r)

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if o.SessionID != sessionID {
		respondError(w, r, postgres.ErrOrderNotFound)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, true)
	writeJSON(w, http.StatusOK, &e)
}

// cancelOrder serves POST /api/orders/{id}/cancel. Customers may cancel their
// own orders while still pending or confirmed.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := h.sessions.SessionID(w, r)

	o, err := h.orders.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if o.SessionID != sessionID {
		respondError(w, r, postgres.ErrOrderNotFound)
		return
	}

	from := o.Status
	if err := o.Cancel(time.Now().UTC()); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.orders.UpdateStatus(ctx, o, from); err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o, true)
	writeJSON(w, http.StatusOK, &e)
}

func encodeOrderList(e *jx.Encoder, orders []order.Order) {
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i], false)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// encodeOrder writes one order object. The detail form includes items and
// addresses; the list form carries just the header fields.
func encodeOrder(e *jx.Encoder, o *order.Order, detail bool) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("number")
	e.Str(o.Number)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("status_label")
	e.Str(o.StatusLabel())
	e.FieldStart("can_cancel")
	e.Bool(o.CanBeCancelled())
	e.FieldStart("subtotal")
	e.Float64(o.Subtotal.InexactFloat64())
	e.FieldStart("tax")
	e.Float64(o.TaxAmount.InexactFloat64())
	e.FieldStart("shipping")
	e.Float64(o.ShippingAmount.InexactFloat64())
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("formatted_total")
	e.Str(o.FormattedTotal())
	e.FieldStart("currency")
	e.Str(o.Currency)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	if detail {
		e.FieldStart("email")
		e.Str(o.Email)
		e.FieldStart("payment_method")
		e.Str(o.PaymentMethod)
		if o.Notes != "" {
			e.FieldStart("notes")
			e.Str(o.Notes)
		}
		e.FieldStart("shipping_address")
		encodeAddress(e, o.ShippingAddress)
		e.FieldStart("billing_address")
		encodeAddress(e, o.BillingAddress)
		if !o.ShippedAt.IsZero() {
			e.FieldStart("shipped_at")
			e.Str(o.ShippedAt.UTC().Format(time.RFC3339))
		}
		if !o.DeliveredAt.IsZero() {
			e.FieldStart("delivered_at")
			e.Str(o.DeliveredAt.UTC().Format(time.RFC3339))
		}
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range o.Items {
			encodeOrderItem(e, it)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(it.ProductID)
	e.FieldStart("name")
	e.Str(it.ProductName)
	e.FieldStart("sku")
	e.Str(it.ProductSKU)
	e.FieldStart("quantity")
	e.Int(it.Quantity)
	e.FieldStart("unit_price")
	e.Float64(it.UnitPrice.InexactFloat64())
	e.FieldStart("total_price")
	e.Float64(it.TotalPrice.InexactFloat64())
	if it.Snapshot.Image != "" {
		e.FieldStart("image")
		e.Str(it.Snapshot.Image)
	}
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(a.Name)
	e.FieldStart("line1")
	e.Str(a.Line1)
	if a.Line2 != "" {
		e.FieldStart("line2")
		e.Str(a.Line2)
	}
	e.FieldStart("city")
	e.Str(a.City)
	if a.State != "" {
		e.FieldStart("state")
		e.Str(a.State)
	}
	e.FieldStart("postal_code")
	e.Str(a.PostalCode)
	e.FieldStart("country")
	e.Str(a.Country)
	e.ObjEnd()
}
