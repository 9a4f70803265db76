// Package order implements the checkout side of the storefront: turning a
// session cart into a persisted order with validated stock and computed
// totals, and the status lifecycle of orders after creation.
package order

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/averlon/podstore/internal/domain/product"
)

// Address is a structured postal address snapshot. Addresses are captured at
// checkout and never change afterwards.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is a durable purchase record. Monetary fields and addresses are
// immutable once the order is created; only the status (and its timestamps)
// changes afterwards.
type Order struct {
	ID        string
	Number    string
	SessionID string
	Email     string
	Status    Status

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	Total          decimal.Decimal
	Currency       string

	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string

	Items []Item

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   time.Time
	DeliveredAt time.Time
}

// Item is one order line. Product display data is denormalized into the item
// at creation so historical orders stay stable when the catalog changes.
type Item struct {
	ID          string
	ProductID   string
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	Snapshot    Snapshot
}

// Snapshot is the frozen copy of a product's display fields stored with an
// order item.
type Snapshot struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku"`
	Image       string          `json:"image"`
}

// NewItem builds an order item for quantity units of p, capturing the
// product snapshot and deriving the line total.
func NewItem(p *product.Product, quantity int) Item {
	return Item{
		ID:          uuid.New().String(),
		ProductID:   p.ID,
		ProductName: p.Name,
		ProductSKU:  p.SKU,
		Quantity:    quantity,
		UnitPrice:   p.Price,
		TotalPrice:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Snapshot: Snapshot{
			Name:        p.Name,
			Description: p.ShortDescription,
			Price:       p.Price,
			SKU:         p.SKU,
			Image:       p.MainImage(),
		},
	}
}

// TotalItems returns the sum of item quantities.
func (o *Order) TotalItems() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	return total
}

// FormattedTotal renders the grand total as a dollar amount, e.g. "$270.00".
func (o *Order) FormattedTotal() string { return "$" + o.Total.StringFixed(2) }

// FormattedSubtotal renders the item subtotal.
func (o *Order) FormattedSubtotal() string { return "$" + o.Subtotal.StringFixed(2) }

// FormattedTax renders the tax amount.
func (o *Order) FormattedTax() string { return "$" + o.TaxAmount.StringFixed(2) }

// FormattedShipping renders the shipping amount.
func (o *Order) FormattedShipping() string { return "$" + o.ShippingAmount.StringFixed(2) }

// NewNumber generates a human-readable order number, e.g. "ORD-2026-9F2A41C8D03B".
// It is presented to customers and is distinct from the order's ID.
func NewNumber(now time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(u[:6]))
	return fmt.Sprintf("ORD-%d-%s", now.Year(), suffix)
}

// Tx is the unit of work a checkout runs in. DecrementStock must be atomic:
// it fails with cart.ErrInsufficientStock when the decrement would drive
// stock negative, and two concurrent checkouts must serialize per product.
type Tx interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
	SaveOrder(ctx context.Context, o *Order) error
}

// Gateway runs a function inside a single database transaction. If fn
// returns an error the transaction is rolled back; neither the order nor any
// stock decrement is kept.
type Gateway interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Repository defines the read and admin-side persistence operations for
// orders. Creation goes through Gateway instead.
//
// UpdateStatus is a compare-and-set: it only writes when the stored status
// still equals from, and fails with ErrInvalidTransition when another writer
// moved the order first.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, o *Order, from Status) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
