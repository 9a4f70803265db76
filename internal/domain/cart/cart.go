// Package cart implements the session-scoped shopping cart: a mapping from
// product ID to a quantity/price line, kept consistent with live stock.
package cart

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation errors surfaced to the presentation layer.
var (
	// ErrInvalidQuantity is returned when a non-positive quantity is supplied
	// to Add.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")

	// ErrProductUnavailable is returned when the product is inactive or fully
	// out of stock at add time.
	ErrProductUnavailable = errors.New("product is unavailable")

	// ErrInsufficientStock is returned when a requested quantity exceeds the
	// live catalog stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Line is one product's entry in a cart. UnitPrice is snapshotted from the
// catalog when the line is created; LineTotal is always derived, never set
// directly.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Cart holds the visitor's intended purchases keyed by product ID. A Cart is
// a plain value: it carries no session or catalog coupling and all stock
// enforcement happens in Store.
type Cart struct {
	Lines map[string]Line `json:"lines"`
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{Lines: make(map[string]Line)}
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Has reports whether the cart contains the given product.
func (c *Cart) Has(productID string) bool {
	_, ok := c.Lines[productID]
	return ok
}

// Quantity returns the quantity for the given product, or 0 when absent.
func (c *Cart) Quantity(productID string) int {
	return c.Lines[productID].Quantity
}

// ItemCount returns the sum of all line quantities.
func (c *Cart) ItemCount() int {
	count := 0
	for _, l := range c.Lines {
		count += l.Quantity
	}
	return count
}

// Total returns the sum of all line totals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// FormattedTotal renders the cart total as a dollar amount, e.g. "$249.00".
func (c *Cart) FormattedTotal() string {
	return "$" + c.Total().StringFixed(2)
}

// Items returns a snapshot of the cart lines ordered by product ID. Order is
// not meaningful; sorting just makes the output deterministic.
func (c *Cart) Items() []Line {
	items := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, l)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

// setQuantity stores the line with the given quantity and a recomputed total.
func (c *Cart) setQuantity(l Line, qty int) {
	l.Quantity = qty
	l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	c.Lines[l.ProductID] = l
}
