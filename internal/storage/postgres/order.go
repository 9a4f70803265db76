package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlon/podstore/internal/domain/cart"
	"github.com/averlon/podstore/internal/domain/order"
)

const orderColumns = `id, order_number, session_id, email, status, subtotal, tax_amount,
	shipping_amount, total, currency, shipping_address, billing_address, payment_method,
	notes, created_at, updated_at, shipped_at, delivered_at`

const (
	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersBySessionSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE session_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	countOrdersByStatusSQL = `SELECT status, COUNT(*) FROM orders GROUP BY status`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3,
		shipped_at = $4, delivered_at = $5
		WHERE id = $1 AND status = $6`

	insertOrderSQL = `INSERT INTO orders (id, order_number, session_id, email, status,
		subtotal, tax_amount, shipping_amount, total, currency, shipping_address,
		billing_address, payment_method, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name,
		product_sku, quantity, unit_price, total_price, product_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listOrderItemsSQL = `SELECT id, product_id, product_name, product_sku, quantity,
		unit_price, total_price, product_snapshot
		FROM order_items WHERE order_id = $1 ORDER BY product_id`

	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`
)

// ErrOrderNotFound is returned when no order matches the given identifier.
var ErrOrderNotFound = errors.New("order not found")

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements the read and admin side of order persistence.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns one order with its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}

	itemRows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan order items")
	}
	return &o, nil
}

// ListBySession returns the session's order headers, newest first. Items are
// not loaded; use GetByID for the full aggregate.
func (r *OrderRepository) ListBySession(ctx context.Context, sessionID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersBySessionSQL, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns a page of order headers for the admin surface.
func (r *OrderRepository) List(ctx context.Context, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus persists the order's status and lifecycle timestamps. The
// guarded UPDATE only hits a row whose status still equals from, so a write
// racing another status change affects zero rows instead of clobbering the
// fresher state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL,
		o.ID, string(o.Status), nullableTime(o.UpdatedAt),
		nullableTime(o.ShippedAt), nullableTime(o.DeliveredAt),
		string(from),
	)
	if err != nil {
		return errors.Wrapf(err, "update order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrInvalidTransition, "order %q is no longer %s", o.ID, from)
	}
	return nil
}

// CountByStatus returns the number of orders per status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int, error) {
	rows, err := r.pool.Query(ctx, countOrdersByStatusSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query order counts")
	}
	defer rows.Close()

	counts := make(map[order.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan order count")
		}
		counts[order.Status(status)] = n
	}
	return counts, rows.Err()
}

var _ order.Gateway = (*CheckoutGateway)(nil)

// CheckoutGateway runs checkouts inside a single database transaction, so an
// order and its stock decrements commit or roll back together.
type CheckoutGateway struct {
	pool *pgxpool.Pool
}

// NewCheckoutGateway returns a CheckoutGateway that uses the given pool.
func NewCheckoutGateway(pool *pgxpool.Pool) *CheckoutGateway {
	return &CheckoutGateway{pool: pool}
}

// InTx begins a transaction, runs fn, and commits when fn succeeds. Any
// error from fn rolls everything back.
func (g *CheckoutGateway) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&checkoutTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type checkoutTx struct {
	tx pgx.Tx
}

// DecrementStock atomically subtracts quantity from the product's stock. The
// conditional UPDATE takes a row lock, so two concurrent checkouts of the
// same product serialize here and cannot both drive stock below zero. When
// the guard fails it returns cart.ErrInsufficientStock without modifying the
// row.
func (t *checkoutTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, quantity)
	if err != nil {
		return errors.Wrapf(err, "decrement stock for %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrInsufficientStock
	}
	return nil
}

// SaveOrder inserts the order header and all items.
func (t *checkoutTx) SaveOrder(ctx context.Context, o *order.Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal billing address")
	}

	_, err = t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.SessionID, o.Email, string(o.Status),
		o.Subtotal, o.TaxAmount, o.ShippingAmount, o.Total, o.Currency,
		shipping, billing, o.PaymentMethod, o.Notes, o.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	batch := &pgx.Batch{}
	for _, it := range o.Items {
		snapshot, err := json.Marshal(it.Snapshot)
		if err != nil {
			return errors.Wrap(err, "marshal product snapshot")
		}
		batch.Queue(insertOrderItemSQL,
			it.ID, o.ID, it.ProductID, it.ProductName, it.ProductSKU,
			it.Quantity, it.UnitPrice, it.TotalPrice, snapshot,
		)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "insert items for order %q", o.ID)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                           order.Order
		status                      string
		shipping, billing           []byte
		updated, shipped, delivered *time.Time
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.SessionID, &o.Email, &status,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.Total, &o.Currency,
		&shipping, &billing, &o.PaymentMethod, &o.Notes,
		&o.CreatedAt, &updated, &shipped, &delivered,
	)
	if err != nil {
		return o, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return o, errors.Wrap(err, "decode shipping address")
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return o, errors.Wrap(err, "decode billing address")
	}
	if updated != nil {
		o.UpdatedAt = *updated
	}
	if shipped != nil {
		o.ShippedAt = *shipped
	}
	if delivered != nil {
		o.DeliveredAt = *delivered
	}
	return o, nil
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it       order.Item
		snapshot []byte
	)
	err := row.Scan(
		&it.ID, &it.ProductID, &it.ProductName, &it.ProductSKU,
		&it.Quantity, &it.UnitPrice, &it.TotalPrice, &snapshot,
	)
	if err != nil {
		return it, err
	}
	if err := json.Unmarshal(snapshot, &it.Snapshot); err != nil {
		return it, errors.Wrap(err, "decode product snapshot")
	}
	return it, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
