package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/averlon/podstore/internal/domain/cart"
	"github.com/averlon/podstore/internal/domain/order"
	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/storage/postgres"
)

// writeJSON sends the encoder contents with the given status code.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError sends a {"error": ...} body with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// respondError maps domain errors to HTTP status codes. Unrecognized errors
// are logged and reported as a plain 500 without leaking details.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be positive")
	case errors.Is(err, cart.ErrProductUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "product is unavailable")
	case errors.Is(err, cart.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid status transition")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, postgres.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		zctx.From(r.Context()).Error("Internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
