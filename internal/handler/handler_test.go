package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlon/podstore/internal/domain/auth"
	"github.com/averlon/podstore/internal/domain/cart"
	"github.com/averlon/podstore/internal/domain/order"
	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/session"
	"github.com/averlon/podstore/internal/storage/postgres"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID    map[string]*product.Product
	created []*product.Product
	updated []*product.Product
}

func (m *mockCatalog) get(id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	return m.get(id)
}

func (m *mockCatalog) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	for id, p := range m.byID {
		if p.Slug == slug {
			return m.get(id)
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockCatalog) ListActive(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListFeatured(_ context.Context, limit int) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.IsFeatured && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListByCategory(_ context.Context, categoryID string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.CategoryID == categoryID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListRelated(_ context.Context, rel *product.Product, limit int) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		if p.CategoryID == rel.CategoryID && p.ID != rel.ID && len(out) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockCatalog) Search(_ context.Context, _ string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockCatalog) Create(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockCatalog) Update(_ context.Context, p *product.Product) error {
	m.byID[p.ID] = p
	m.updated = append(m.updated, p)
	return nil
}

type mockCategories struct {
	bySlug map[string]*product.Category
}

func (m *mockCategories) GetBySlug(_ context.Context, slug string) (*product.Category, error) {
	c, ok := m.bySlug[slug]
	if !ok {
		return nil, product.ErrNotFound
	}
	return c, nil
}

func (m *mockCategories) ListActive(_ context.Context) ([]product.Category, error) {
	var out []product.Category
	for _, c := range m.bySlug {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockCategories) ListRoot(_ context.Context) ([]product.Category, error) { return nil, nil }

func (m *mockCategories) Create(_ context.Context, c *product.Category) error {
	m.bySlug[c.Slug] = c
	return nil
}

func (m *mockCategories) Update(_ context.Context, c *product.Category) error {
	m.bySlug[c.Slug] = c
	return nil
}

type mockGateway struct {
	stock   map[string]int
	saveErr error
	saved   *order.Order
}

type mockTx struct{ g *mockGateway }

func (t *mockTx) DecrementStock(_ context.Context, productID string, quantity int) error {
	if t.g.stock[productID] < quantity {
		return cart.ErrInsufficientStock
	}
	t.g.stock[productID] -= quantity
	return nil
}

func (t *mockTx) SaveOrder(_ context.Context, o *order.Order) error {
	if t.g.saveErr != nil {
		return t.g.saveErr
	}
	t.g.saved = o
	return nil
}

func (g *mockGateway) InTx(_ context.Context, fn func(tx order.Tx) error) error {
	return fn(&mockTx{g: g})
}

type mockOrders struct {
	byID    map[string]*order.Order
	updated *order.Order

	// afterGet runs once the read copy is taken, emulating a concurrent
	// writer changing the stored order between read and write.
	afterGet func()
}

func (m *mockOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, postgres.ErrOrderNotFound
	}
	cp := *o
	if m.afterGet != nil {
		m.afterGet()
	}
	return &cp, nil
}

func (m *mockOrders) ListBySession(_ context.Context, sessionID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		if o.SessionID == sessionID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrders) List(_ context.Context, _, _ int) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockOrders) UpdateStatus(_ context.Context, o *order.Order, from order.Status) error {
	stored, ok := m.byID[o.ID]
	if !ok {
		return postgres.ErrOrderNotFound
	}
	if stored.Status != from {
		return errors.Wrapf(order.ErrInvalidTransition, "order %q is no longer %s", o.ID, from)
	}
	m.byID[o.ID] = o
	m.updated = o
	return nil
}

func (m *mockOrders) CountByStatus(_ context.Context) (map[order.Status]int, error) {
	counts := make(map[order.Status]int)
	for _, o := range m.byID {
		counts[o.Status]++
	}
	return counts, nil
}

type mockAPIKeys struct {
	byHash map[string]*auth.APIKey
}

func (m *mockAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return k, nil
}

// --- Helpers ---

const (
	sid       = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	adminKey  = "test-admin-key"
	keyPepper = "pepper"
)

type fixture struct {
	catalog *mockCatalog
	gateway *mockGateway
	orders  *mockOrders
	carts   *cart.Store
	srv     http.Handler
}

func newFixture(products ...*product.Product) *fixture {
	byID := make(map[string]*product.Product, len(products))
	stock := make(map[string]int, len(products))
	for _, p := range products {
		byID[p.ID] = p
		stock[p.ID] = p.Stock
	}

	catalog := &mockCatalog{byID: byID}
	categories := &mockCategories{bySlug: map[string]*product.Category{
		"airpods": {ID: "c1", Name: "AirPods", Slug: "airpods", IsActive: true},
	}}
	gateway := &mockGateway{stock: stock}
	orders := &mockOrders{byID: make(map[string]*order.Order)}
	apikeys := &mockAPIKeys{byHash: map[string]*auth.APIKey{
		auth.HashKey([]byte(keyPepper), adminKey): {Name: "test"},
	}}

	carts := cart.NewStore(session.NewMemoryStore(), catalog)
	checkout := order.NewService(carts, catalog, gateway, order.DefaultPricing(), nil)

	h := New(
		Config{APIKeyPepper: []byte(keyPepper)},
		session.NewManager(false, 3600),
		carts,
		catalog,
		nil,
		categories,
		checkout,
		orders,
		apikeys,
	)

	return &fixture{
		catalog: catalog,
		gateway: gateway,
		orders:  orders,
		carts:   carts,
		srv:     h.Routes(),
	}
}

func newStoreProduct(id, slug, price string, stock int) *product.Product {
	return &product.Product{
		ID:         id,
		CategoryID: "c1",
		Name:       "Product " + id,
		Slug:       slug,
		SKU:        "SKU-" + id,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		IsActive:   true,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sid})
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func withAPIKey(key string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(apiKeyHeader, key)
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

// --- Catalog tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(
		newStoreProduct("p1", "widget", "10.00", 5),
		newStoreProduct("p2", "gadget", "20.00", 5),
	)

	w := f.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.Len(t, body["products"], 2)
}

func TestGetProduct(t *testing.T) {
	p := newStoreProduct("p1", "airpods-pro", "249.00", 5)
	p.Images = []string{"airpods-pro.jpg"}
	f := newFixture(p, newStoreProduct("p2", "airpods-max", "549.00", 5))

	w := f.do(t, http.MethodGet, "/api/products/airpods-pro", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	got := body["product"].(map[string]any)
	assert.Equal(t, "Product p1", got["name"])
	assert.Equal(t, float64(249), got["price"])
	assert.Equal(t, "$249.00", got["formatted_price"])
	assert.Len(t, body["related"], 1)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/products/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategoryProducts(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 5))

	w := f.do(t, http.MethodGet, "/api/categories/airpods/products", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Len(t, body["products"], 1)
}

// --- Cart tests ---

func TestCartFlow(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "100.00", 10))

	// Add two units.
	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["item_count"])
	assert.Equal(t, float64(200), body["total"])

	// The cart is visible on a plain GET with the same session.
	w = f.do(t, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["item_count"])

	// Change the quantity.
	w = f.do(t, http.MethodPatch, "/api/cart/items/p1", updateItemRequest{Quantity: 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(5), decodeBody(t, w)["item_count"])

	// Remove the line.
	w = f.do(t, http.MethodDelete, "/api/cart/items/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["item_count"])
}

func TestAddCartItem_DefaultQuantity(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["item_count"])
}

func TestAddCartItem_InvalidQuantity(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "p1", Quantity: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "missing", Quantity: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateCartItem_OverStock(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 3))

	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "p1", Quantity: 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPatch, "/api/cart/items/p1", updateItemRequest{Quantity: 10})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClearCart(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["item_count"])
}

// --- Checkout and order tests ---

func checkoutBody() checkoutRequest {
	return checkoutRequest{
		Email: "buyer@example.com",
		ShippingAddress: addressPayload{
			Name:       "Ada Lovelace",
			Line1:      "1 Analytical Way",
			City:       "London",
			PostalCode: "N1 9GU",
			Country:    "GB",
		},
		PaymentMethod: "card",
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "125.00", 10))

	w := f.do(t, http.MethodPost, "/api/cart/items", addItemRequest{ProductID: "p1", Quantity: 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Regexp(t, `^ORD-\d{4}-[0-9A-F]{12}$`, body["number"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, float64(250), body["subtotal"])
	assert.Equal(t, float64(270), body["total"])
	assert.Equal(t, "$270.00", body["formatted_total"])
	assert.Len(t, body["items"], 1)

	// Billing defaults to the shipping address when omitted.
	billing := body["billing_address"].(map[string]any)
	assert.Equal(t, "1 Analytical Way", billing["line1"])

	require.NotNil(t, f.gateway.saved)
	assert.Equal(t, 8, f.gateway.stock["p1"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_MissingShippingAddress(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 10))

	req := checkoutBody()
	req.ShippingAddress = addressPayload{}
	w := f.do(t, http.MethodPost, "/api/checkout", req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrder_OwnSession(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", Number: "ORD-2026-AAAAAAAAAAAA", SessionID: sid, Status: order.StatusPending}

	w := f.do(t, http.MethodGet, "/api/orders/o1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ORD-2026-AAAAAAAAAAAA", decodeBody(t, w)["number"])
}

func TestGetOrder_ForeignSessionHidden(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: "99999999-8888-7777-6666-555555555555", Status: order.StatusPending}

	w := f.do(t, http.MethodGet, "/api/orders/o1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: sid, Status: order.StatusPending}

	w := f.do(t, http.MethodPost, "/api/orders/o1/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", decodeBody(t, w)["status"])
	assert.Equal(t, order.StatusCancelled, f.orders.updated.Status)
}

func TestCancelOrder_ConcurrentShipment(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: sid, Status: order.StatusPending}
	// An admin ships the order between the customer's read and their write.
	f.orders.afterGet = func() {
		f.orders.byID["o1"].Status = order.StatusShipped
	}

	w := f.do(t, http.MethodPost, "/api/orders/o1/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, order.StatusShipped, f.orders.byID["o1"].Status, "the fresher status survives")
}

func TestCancelOrder_AlreadyShipped(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: sid, Status: order.StatusShipped}

	w := f.do(t, http.MethodPost, "/api/orders/o1/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Admin tests ---

func TestAdmin_RequiresAPIKey(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/admin/dashboard", nil, withAPIKey("wrong-key"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_Dashboard(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}
	f.orders.byID["o2"] = &order.Order{ID: "o2", Status: order.StatusShipped}

	w := f.do(t, http.MethodGet, "/api/admin/dashboard", nil, withAPIKey(adminKey))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["total_orders"])
	byStatus := body["orders_by_status"].(map[string]any)
	assert.Equal(t, float64(1), byStatus["pending"])
	assert.Equal(t, float64(1), byStatus["shipped"])
}

func TestAdmin_UpdateOrderStatus(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: sid, Status: order.StatusPending}

	w := f.do(t, http.MethodPost, "/api/admin/orders/o1/status",
		updateStatusRequest{Status: "shipped"}, withAPIKey(adminKey))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "shipped", body["status"])
	assert.NotEmpty(t, body["shipped_at"])
}

func TestAdmin_UpdateOrderStatus_ConcurrentChange(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", SessionID: sid, Status: order.StatusConfirmed}
	// The customer cancels while the admin request is in flight.
	f.orders.afterGet = func() {
		f.orders.byID["o1"].Status = order.StatusCancelled
	}

	w := f.do(t, http.MethodPost, "/api/admin/orders/o1/status",
		updateStatusRequest{Status: "processing"}, withAPIKey(adminKey))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, order.StatusCancelled, f.orders.byID["o1"].Status, "the fresher status survives")
}

func TestAdmin_UpdateOrderStatus_Illegal(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", Status: order.StatusDelivered}

	w := f.do(t, http.MethodPost, "/api/admin/orders/o1/status",
		updateStatusRequest{Status: "pending"}, withAPIKey(adminKey))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdmin_UpdateOrderStatus_Unknown(t *testing.T) {
	f := newFixture()
	f.orders.byID["o1"] = &order.Order{ID: "o1", Status: order.StatusPending}

	w := f.do(t, http.MethodPost, "/api/admin/orders/o1/status",
		updateStatusRequest{Status: "teleported"}, withAPIKey(adminKey))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_CreateProduct(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/admin/products", map[string]any{
		"category_id": "c1",
		"name":        "AirPods Pro",
		"slug":        "airpods-pro",
		"sku":         "APP-001",
		"price":       "249.00",
		"stock":       50,
	}, withAPIKey(adminKey))
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, f.catalog.created, 1)
	created := f.catalog.created[0]
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive, "products default to active")
	assert.True(t, decimal.RequireFromString("249.00").Equal(created.Price))
}

func TestAdmin_CreateProduct_Invalid(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/admin/products", map[string]any{
		"name": "No price",
		"slug": "no-price",
	}, withAPIKey(adminKey))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_UpdateProduct(t *testing.T) {
	f := newFixture(newStoreProduct("p1", "widget", "10.00", 5))

	w := f.do(t, http.MethodPut, "/api/admin/products/p1", map[string]any{
		"category_id": "c1",
		"name":        "Widget v2",
		"slug":        "widget",
		"sku":         "SKU-p1",
		"price":       "12.00",
		"stock":       7,
	}, withAPIKey(adminKey))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, f.catalog.updated, 1)
	assert.Equal(t, "Widget v2", f.catalog.updated[0].Name)
	assert.Equal(t, 7, f.catalog.updated[0].Stock)
}
