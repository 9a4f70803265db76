package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/averlon/podstore/internal/domain/cart"
)

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// getCart serves GET /api/cart.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.SessionID(w, r)

	c, err := h.carts.Get(r.Context(), sessionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCart(w, http.StatusOK, c)
}

// addCartItem serves POST /api/cart/items. A missing quantity defaults to 1
// so "add to cart" buttons can post just the product ID.
func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sessionID := h.sessions.SessionID(w, r)
	c, err := h.carts.Add(r.Context(), sessionID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCart(w, http.StatusOK, c)
}

// updateCartItem serves PATCH /api/cart/items/{productID}.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := h.sessions.SessionID(w, r)
	c, err := h.carts.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCart(w, http.StatusOK, c)
}

// removeCartItem serves DELETE /api/cart/items/{productID}. Removing an item
// that is not in the cart succeeds.
func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.SessionID(w, r)

	c, err := h.carts.Remove(r.Context(), sessionID, chi.URLParam(r, "productID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondCart(w, http.StatusOK, c)
}

// clearCart serves DELETE /api/cart.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessions.SessionID(w, r)

	if err := h.carts.Clear(r.Context(), sessionID); err != nil {
		respondError(w, r, err)
		return
	}
	respondCart(w, http.StatusOK, cart.New())
}

func respondCart(w http.ResponseWriter, status int, c *cart.Cart) {
	var e jx.Encoder
	encodeCart(&e, c)
	writeJSON(w, status, &e)
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range c.Items() {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("name")
		e.Str(l.Name)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unit_price")
		e.Float64(l.UnitPrice.InexactFloat64())
		e.FieldStart("line_total")
		e.Float64(l.LineTotal.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("item_count")
	e.Int(c.ItemCount())
	e.FieldStart("total")
	e.Float64(c.Total().InexactFloat64())
	e.FieldStart("formatted_total")
	e.Str(c.FormattedTotal())
	e.ObjEnd()
}
