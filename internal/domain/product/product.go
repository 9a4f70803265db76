package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product or category does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID               string
	CategoryID       string
	Name             string
	Slug             string
	SKU              string
	ShortDescription string
	Description      string
	Price            decimal.Decimal
	OriginalPrice    decimal.Decimal
	Stock            int
	IsActive         bool
	IsFeatured       bool
	Images           []string
	SortOrder        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// InStock reports whether the product can currently be added to a cart.
func (p *Product) InStock() bool {
	return p.IsActive && p.Stock > 0
}

// OnSale reports whether the product is discounted from its original price.
func (p *Product) OnSale() bool {
	return !p.OriginalPrice.IsZero() && p.OriginalPrice.GreaterThan(p.Price)
}

// MainImage returns the primary product image, or "" when none is set.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Category groups products for storefront navigation. Categories form a tree
// via ParentID.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	ParentID    string
	SortOrder   int
	IsActive    bool
}

// Repository defines read operations for the product catalog. The write side
// used by the admin surface lives on AdminRepository so the storefront only
// depends on what it needs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	ListActive(ctx context.Context) ([]Product, error)
	ListFeatured(ctx context.Context, limit int) ([]Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	ListRelated(ctx context.Context, p *Product, limit int) ([]Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
}

// AdminRepository extends Repository with catalog management operations.
type AdminRepository interface {
	Repository

	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
}

// CategoryRepository defines operations on the category tree.
type CategoryRepository interface {
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	ListActive(ctx context.Context) ([]Category, error)
	ListRoot(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
}
