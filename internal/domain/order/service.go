package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/averlon/podstore/internal/domain/cart"
	"github.com/averlon/podstore/internal/domain/product"
)

// ErrEmptyCart is returned when checkout is attempted with no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// CheckoutRequest carries the customer-supplied checkout details.
type CheckoutRequest struct {
	Email           string
	ShippingAddress Address
	BillingAddress  Address
	PaymentMethod   string
	Notes           string
}

// CacheInvalidator evicts cached catalog entries for a product whose stock
// just changed, so subsequent cart reads see the decremented value instead
// of a stale copy.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, p *product.Product)
}

// Service assembles orders from carts. Stock is enforced at commit time via
// the gateway's atomic decrement, not just at cart-add time, because stock
// may have changed since the line was added.
type Service struct {
	carts   *cart.Store
	catalog product.Repository
	gateway Gateway
	pricing Pricing
	cache   CacheInvalidator

	now func() time.Time
}

// NewService creates a checkout Service. cache may be nil when catalog reads
// are not cached.
func NewService(carts *cart.Store, catalog product.Repository, gateway Gateway, pricing Pricing, cache CacheInvalidator) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
		gateway: gateway,
		pricing: pricing,
		cache:   cache,
		now:     time.Now,
	}
}

// Checkout converts the session's cart into a persisted order.
//
// Every cart line is re-validated against live stock inside one database
// transaction: the decrement either commits together with the order or not
// at all. A line whose product no longer has enough stock (or was removed
// from the catalog) is skipped rather than failing the whole checkout; the
// order's Items reflect what actually committed, so callers can compare
// against the cart they submitted. On success the cart is cleared and the
// cached catalog entries of every committed line are evicted, so cart adds
// immediately see the decremented stock.
func (s *Service) Checkout(ctx context.Context, sessionID string, req CheckoutRequest) (*Order, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	now := s.now().UTC()
	o := &Order{
		ID:              uuid.New().String(),
		Number:          NewNumber(now),
		SessionID:       sessionID,
		Email:           req.Email,
		Status:          StatusPending,
		Currency:        "USD",
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		CreatedAt:       now,
	}

	var committed []*product.Product
	err = s.gateway.InTx(ctx, func(tx Tx) error {
		committed = committed[:0]
		subtotal := decimal.Zero
		for _, line := range c.Items() {
			p, err := s.catalog.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					// Product vanished since it was carted; treat like
					// under-stock and skip the line.
					continue
				}
				return errors.Wrap(err, "lookup product")
			}

			if err := tx.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
				if errors.Is(err, cart.ErrInsufficientStock) {
					zctx.From(ctx).Info("Skipping under-stocked line",
						zap.String("product_id", p.ID),
						zap.Int("quantity", line.Quantity),
					)
					continue
				}
				return errors.Wrap(err, "decrement stock")
			}

			item := NewItem(p, line.Quantity)
			o.Items = append(o.Items, item)
			subtotal = subtotal.Add(item.TotalPrice)
			committed = append(committed, p)
		}

		o.Subtotal = subtotal.Round(2)
		if len(o.Items) == 0 {
			// Nothing committed: keep the order as a zero-value record
			// instead of charging shipping on an empty purchase.
			o.TaxAmount = decimal.Zero
			o.ShippingAmount = decimal.Zero
			o.Total = decimal.Zero
		} else {
			o.TaxAmount = s.pricing.Tax(o.Subtotal)
			o.ShippingAmount = s.pricing.Shipping(o.Subtotal)
			o.Total = o.Subtotal.Add(o.TaxAmount).Add(o.ShippingAmount)
		}

		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	if s.cache != nil {
		// Stock changed under the committed lines; their cached entries are
		// now stale.
		for _, p := range committed {
			s.cache.Invalidate(ctx, p)
		}
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		// The order is already durable; losing the clear only leaves a stale
		// cart behind.
		zctx.From(ctx).Warn("Failed to clear cart after checkout",
			zap.String("order_id", o.ID), zap.Error(err))
	}

	return o, nil
}
