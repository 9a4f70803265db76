package cart

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/averlon/podstore/internal/domain/product"
	"github.com/averlon/podstore/internal/session"
)

// sessionKey is the session store key the serialized cart lives under.
const sessionKey = "shopping_cart"

// Store loads, mutates, and persists the per-session cart, validating every
// mutation against live catalog stock.
//
// Two racing requests of the same session are not serialized: the last write
// wins, as in a classic server-session cart. Cross-session safety is not a
// concern here because sessions never share a cart; the checkout transaction
// is where cross-session stock contention is resolved.
type Store struct {
	sessions session.Store
	catalog  product.Repository
}

// NewStore creates a cart Store backed by the given session store and catalog.
func NewStore(sessions session.Store, catalog product.Repository) *Store {
	return &Store{sessions: sessions, catalog: catalog}
}

// Get loads the session's cart, returning an empty cart when none exists yet.
func (s *Store) Get(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := s.sessions.Get(ctx, sessionID, sessionKey)
	if errors.Is(err, session.ErrNoValue) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	if c.Lines == nil {
		c.Lines = make(map[string]Line)
	}
	return c, nil
}

// Add puts quantity units of the product into the cart, creating a new line
// with the product's current price or incrementing an existing one.
//
// A non-positive quantity fails with ErrInvalidQuantity and an inactive or
// out-of-stock product with ErrProductUnavailable. When the resulting
// quantity exceeds live stock it is silently clamped to the available stock;
// this mirrors UpdateQuantity's hard ErrInsufficientStock failure
// asymmetrically on purpose, preserving the storefront's historical
// behaviour.
func (s *Store) Add(ctx context.Context, sessionID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, errors.Wrap(err, "lookup product")
	}
	if !p.InStock() {
		return nil, ErrProductUnavailable
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	line, ok := c.Lines[productID]
	if !ok {
		line = Line{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
		}
	}

	qty := line.Quantity + quantity
	if qty > p.Stock {
		qty = p.Stock
	}
	c.setQuantity(line, qty)

	return c, s.save(ctx, sessionID, c)
}

// UpdateQuantity sets the line's quantity. A quantity of zero or less removes
// the line; a quantity above live stock fails with ErrInsufficientStock and
// leaves the cart untouched. Updating a product that is not in the cart is a
// no-op.
func (s *Store) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.Remove(ctx, sessionID, productID)
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	line, ok := c.Lines[productID]
	if !ok {
		return c, nil
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, errors.Wrap(err, "lookup product")
	}
	if quantity > p.Stock {
		return nil, ErrInsufficientStock
	}

	c.setQuantity(line, quantity)
	return c, s.save(ctx, sessionID, c)
}

// Remove deletes the product's line. Removing an absent product is a no-op,
// not an error.
func (s *Store) Remove(ctx context.Context, sessionID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Lines[productID]; !ok {
		return c, nil
	}

	delete(c.Lines, productID)
	return c, s.save(ctx, sessionID, c)
}

// Clear empties the session's cart.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID, sessionKey); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func (s *Store) save(ctx context.Context, sessionID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.sessions.Set(ctx, sessionID, sessionKey, data); err != nil {
		return errors.Wrap(err, "store cart")
	}
	return nil
}
