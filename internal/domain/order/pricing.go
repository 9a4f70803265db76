package order

import "github.com/shopspring/decimal"

// Pricing holds the storefront's tax and shipping policy. All methods are
// pure functions of the subtotal.
type Pricing struct {
	// TaxRate is the flat tax rate applied to the item subtotal, e.g. 0.08.
	TaxRate decimal.Decimal
	// ShippingFlat is the flat shipping charge below the free threshold.
	ShippingFlat decimal.Decimal
	// FreeShippingMin is the subtotal at which shipping becomes free.
	FreeShippingMin decimal.Decimal
}

// DefaultPricing returns the storefront defaults: 8% tax, $9.99 flat
// shipping, free shipping from $100.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:         decimal.RequireFromString("0.08"),
		ShippingFlat:    decimal.RequireFromString("9.99"),
		FreeShippingMin: decimal.NewFromInt(100),
	}
}

// Tax returns the tax amount for the given subtotal, rounded to cents.
func (p Pricing) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.TaxRate).Round(2)
}

// Shipping returns the shipping charge for the given subtotal: zero at or
// above the free threshold, the flat rate otherwise.
func (p Pricing) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeShippingMin) {
		return decimal.Zero
	}
	return p.ShippingFlat
}

// OrderTotal returns subtotal + tax + shipping.
func (p Pricing) OrderTotal(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(p.Tax(subtotal)).Add(p.Shipping(subtotal))
}
