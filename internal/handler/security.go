package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/averlon/podstore/internal/domain/auth"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey guards the admin routes. The presented key is HMAC-hashed
// with the server pepper and looked up by hash, so raw key material is never
// stored or compared directly.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing api key")
			return
		}

		hash := auth.HashKey(h.cfg.APIKeyPepper, key)
		if _, err := h.apikeys.FindByHash(r.Context(), hash); err != nil {
			if errors.Is(err, auth.ErrKeyNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			zctx.From(r.Context()).Error("API key lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		next.ServeHTTP(w, r)
	})
}
