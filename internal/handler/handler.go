// Package handler exposes the storefront over a JSON HTTP API: catalog
// browsing, the session cart, checkout, order history, and the admin
// back-office.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/averlon/podstore/internal/catalog"
	"github.com/averlon/podstore/internal/domain/auth"
	"github.com/averlon/podstore/internal/domain/cart"
	"github.com/averlon/podstore/internal/domain/order"
	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/session"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, paths are returned as stored.
	ImageBaseURL string
	// APIKeyPepper is the HMAC pepper admin API keys are hashed with.
	APIKeyPepper []byte
}

// Handler implements the storefront routes, delegating business logic to the
// domain packages.
type Handler struct {
	cfg        Config
	sessions   *session.Manager
	carts      *cart.Store
	products   product.AdminRepository
	cache      *catalog.CachedRepository
	categories product.CategoryRepository
	checkout   *order.Service
	orders     order.Repository
	apikeys    auth.Repository
}

// New constructs a Handler with the required domain dependencies. cache may
// be nil when the catalog is served uncached.
func New(
	cfg Config,
	sessions *session.Manager,
	carts *cart.Store,
	products product.AdminRepository,
	cache *catalog.CachedRepository,
	categories product.CategoryRepository,
	checkout *order.Service,
	orders order.Repository,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		cfg:        cfg,
		sessions:   sessions,
		carts:      carts,
		products:   products,
		cache:      cache,
		categories: categories,
		checkout:   checkout,
		orders:     orders,
		apikeys:    apikeys,
	}
}

// Routes returns the chi router with all storefront and admin endpoints.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{slug}", h.getProduct)
		r.Get("/categories", h.listCategories)
		r.Get("/categories/{slug}/products", h.listCategoryProducts)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Patch("/cart/items/{productID}", h.updateCartItem)
		r.Delete("/cart/items/{productID}", h.removeCartItem)
		r.Delete("/cart", h.clearCart)

		r.Post("/checkout", h.placeOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAPIKey)
			r.Get("/dashboard", h.adminDashboard)
			r.Get("/orders", h.adminListOrders)
			r.Post("/orders/{id}/status", h.adminUpdateOrderStatus)
			r.Post("/products", h.adminCreateProduct)
			r.Put("/products/{id}", h.adminUpdateProduct)
			r.Post("/categories", h.adminCreateCategory)
			r.Put("/categories/{id}", h.adminUpdateCategory)
		})
	})

	return r
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if path == "" || h.cfg.ImageBaseURL == "" {
		return path
	}
	return h.cfg.ImageBaseURL + "/" + path
}
