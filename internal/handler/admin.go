package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averlon/podstore/internal/domain/order"
	"github.com/averlon/podstore/internal/domain/product"
)

const (
	defaultAdminPageSize = 50
	maxAdminPageSize     = 200
)

// adminDashboard serves GET /api/admin/dashboard with order counts per
// status.
func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.orders.CountByStatus(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("total_orders")
	e.Int(total)
	e.FieldStart("orders_by_status")
	e.ObjStart()
	for _, s := range []order.Status{
		order.StatusPending, order.StatusConfirmed, order.StatusProcessing,
		order.StatusShipped, order.StatusDelivered, order.StatusCancelled,
		order.StatusRefunded,
	} {
		e.FieldStart(string(s))
		e.Int(counts[s])
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// adminListOrders serves GET /api/admin/orders with limit/offset paging
// across all sessions.
func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultAdminPageSize
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = min(n, maxAdminPageSize)
	}
	offset := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n > 0 {
		offset = n
	}

	orders, err := h.orders.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrderList(&e, orders)
	writeJSON(w, http.StatusOK, &e)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// adminUpdateOrderStatus serves POST /api/admin/orders/{id}/status, moving an
// order through its lifecycle. Illegal transitions are rejected with 409.
func (h *Handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	o, err := h.orders.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	from := o.Status
	if err := o.TransitionTo(target, time.Now().UTC()); err != nil {
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

type productPayload struct {
	CategoryID       string          `json:"category_id"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	SKU              string          `json:"sku"`
	ShortDescription string          `json:"short_description"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	Stock            int             `json:"stock"`
	IsActive         *bool           `json:"is_active"`
	IsFeatured       bool            `json:"is_featured"`
	Images           []string        `json:"images"`
	SortOrder        int             `json:"sort_order"`
}

func (p *productPayload) validate() string {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return "name is required"
	case strings.TrimSpace(p.Slug) == "":
		return "slug is required"
	case !p.Price.IsPositive():
		return "price must be positive"
	case p.Stock < 0:
		return "stock cannot be negative"
	default:
		return ""
	}
}

func (p *productPayload) apply(dst *product.Product) {
	dst.CategoryID = p.CategoryID
	dst.Name = p.Name
	dst.Slug = p.Slug
	dst.SKU = p.SKU
	dst.ShortDescription = p.ShortDescription
	dst.Description = p.Description
	dst.Price = p.Price
	dst.OriginalPrice = p.OriginalPrice
	dst.Stock = p.Stock
	dst.IsActive = p.IsActive == nil || *p.IsActive
	dst.IsFeatured = p.IsFeatured
	dst.Images = p.Images
	dst.SortOrder = p.SortOrder
}

// adminCreateProduct serves POST /api/admin/products.
func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p := &product.Product{ID: uuid.New().String(), CreatedAt: time.Now().UTC()}
	req.apply(p)

	if err := h.products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	h.encodeProduct(&e, p, true)
	writeJSON(w, http.StatusCreated, &e)
}

// adminUpdateProduct serves PUT /api/admin/products/{id}. The cached catalog
// entry is invalidated so the storefront picks the change up immediately.
func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req productPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.products.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.apply(p)

	if err := h.products.Update(ctx, p); err != nil {
		respondError(w, r, err)
		return
	}
	if h.cache != nil {
		h.cache.Invalidate(ctx, p)
	}

	var e jx.Encoder
	h.encodeProduct(&e, p, true)
	writeJSON(w, http.StatusOK, &e)
}

type categoryPayload struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

func (c *categoryPayload) toCategory(id string) *product.Category {
	return &product.Category{
		ID:          id,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ParentID:    c.ParentID,
		SortOrder:   c.SortOrder,
		IsActive:    c.IsActive == nil || *c.IsActive,
	}
}

// adminCreateCategory serves POST /api/admin/categories.
func (h *Handler) adminCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	c := req.toCategory(uuid.New().String())
	if err := h.categories.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCategory(&e, c)
	writeJSON(w, http.StatusCreated, &e)
}

// adminUpdateCategory serves PUT /api/admin/categories/{id}.
func (h *Handler) adminUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
		writeError(w, http.StatusBadRequest, "name and slug are required")
		return
	}

	c := req.toCategory(chi.URLParam(r, "id"))
	if err := h.categories.Update(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCategory(&e, c)
	writeJSON(w, http.StatusOK, &e)
}
