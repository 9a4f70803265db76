package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCart_Empty(t *testing.T) {
	c := New()

	assert.True(t, c.IsEmpty())
	assert.False(t, c.Has("p1"))
	assert.Equal(t, 0, c.Quantity("p1"))
	assert.Equal(t, 0, c.ItemCount())
	assert.True(t, decimal.Zero.Equal(c.Total()))
	assert.Equal(t, "$0.00", c.FormattedTotal())
	assert.Empty(t, c.Items())
}

func TestCart_Totals(t *testing.T) {
	c := New()
	c.setQuantity(Line{ProductID: "p1", Name: "Widget", UnitPrice: decimal.RequireFromString("249.00")}, 2)
	c.setQuantity(Line{ProductID: "p2", Name: "Gadget", UnitPrice: decimal.RequireFromString("19.00")}, 1)

	assert.Equal(t, 3, c.ItemCount())
	assert.True(t, decimal.RequireFromString("517.00").Equal(c.Total()))
	assert.Equal(t, "$517.00", c.FormattedTotal())
}

func TestCart_LineTotalDerived(t *testing.T) {
	c := New()
	c.setQuantity(Line{ProductID: "p1", UnitPrice: decimal.RequireFromString("9.99")}, 3)

	line := c.Lines["p1"]
	assert.True(t, decimal.RequireFromString("29.97").Equal(line.LineTotal))

	// Shrinking the quantity recomputes the total from the unit price.
	c.setQuantity(line, 1)
	assert.True(t, decimal.RequireFromString("9.99").Equal(c.Lines["p1"].LineTotal))
}

func TestCart_ItemsSorted(t *testing.T) {
	c := New()
	c.setQuantity(Line{ProductID: "zz", UnitPrice: decimal.NewFromInt(1)}, 1)
	c.setQuantity(Line{ProductID: "aa", UnitPrice: decimal.NewFromInt(1)}, 1)
	c.setQuantity(Line{ProductID: "mm", UnitPrice: decimal.NewFromInt(1)}, 1)

	items := c.Items()
	assert.Equal(t, []string{"aa", "mm", "zz"}, []string{items[0].ProductID, items[1].ProductID, items[2].ProductID})
}
