package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/averlon/podstore/internal/domain/product"
)

const (
	defaultFeaturedLimit = 8
	relatedLimit         = 4
)

// reads returns the catalog repository storefront reads should go through:
// the cache when configured, the database otherwise.
func (h *Handler) reads() product.Repository {
	if h.cache != nil {
		return h.cache
	}
	return h.products
}

// listProducts serves GET /api/products. Supports ?featured=1 for the
// homepage carousel and ?q= for search; otherwise lists the active catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		products []product.Product
		err      error
	)
	switch {
	case r.URL.Query().Get("featured") != "":
		limit := defaultFeaturedLimit
		if n, convErr := strconv.Atoi(r.URL.Query().Get("featured")); convErr == nil && n > 0 {
			limit = n
		}
		products, err = h.reads().ListFeatured(ctx, limit)
	case strings.TrimSpace(r.URL.Query().Get("q")) != "":
		products, err = h.reads().Search(ctx, strings.TrimSpace(r.URL.Query().Get("q")))
	default:
		products, err = h.reads().ListActive(ctx)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	h.encodeProductList(&e, products)
	writeJSON(w, http.StatusOK, &e)
}

// getProduct serves GET /api/products/{slug}: the product detail page,
// including related products from the same category.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.reads().GetBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	related, err := h.reads().ListRelated(ctx, p, relatedLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("product")
	h.encodeProduct(&e, p, true)
	e.FieldStart("related")
	e.ArrStart()
	for i := range related {
		h.encodeProduct(&e, &related[i], false)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// listCategories serves GET /api/categories.
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.ListActive(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("categories")
	e.ArrStart()
	for i := range categories {
		encodeCategory(&e, &categories[i])
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

// listCategoryProducts serves GET /api/categories/{slug}/products.
func (h *Handler) listCategoryProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.categories.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	products, err := h.reads().ListByCategory(ctx, c.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("category")
	encodeCategory(&e, c)
	e.FieldStart("products")
	e.ArrStart()
	for i := range products {
		h.encodeProduct(&e, &products[i], false)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) encodeProductList(e *jx.Encoder, products []product.Product) {
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for i := range products {
		h.encodeProduct(e, &products[i], false)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// encodeProduct writes one product object. The detail form adds the long
// description and full image list; the list form stays lean for grids.
func (h *Handler) encodeProduct(e *jx.Encoder, p *product.Product, detail bool) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("category_id")
	e.Str(p.CategoryID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("slug")
	e.Str(p.Slug)
	e.FieldStart("sku")
	e.Str(p.SKU)
	e.FieldStart("short_description")
	e.Str(p.ShortDescription)
	e.FieldStart("price")
	e.Float64(p.Price.InexactFloat64())
	e.FieldStart("formatted_price")
	e.Str("$" + p.Price.StringFixed(2))
	if p.OnSale() {
		e.FieldStart("original_price")
		e.Float64(p.OriginalPrice.InexactFloat64())
	}
	e.FieldStart("in_stock")
	e.Bool(p.InStock())
	e.FieldStart("is_featured")
	e.Bool(p.IsFeatured)
	e.FieldStart("image")
	e.Str(h.imageURL(p.MainImage()))
	if detail {
		e.FieldStart("description")
		e.Str(p.Description)
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("images")
		e.ArrStart()
		for _, img := range p.Images {
			e.Str(h.imageURL(img))
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func encodeCategory(e *jx.Encoder, c *product.Category) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("slug")
	e.Str(c.Slug)
	e.FieldStart("description")
	e.Str(c.Description)
	if c.ParentID != "" {
		e.FieldStart("parent_id")
		e.Str(c.ParentID)
	}
	e.ObjEnd()
}
