package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlon/podstore/internal/domain/product"
)

const productColumns = `id, category_id, name, slug, sku, short_description, description,
	price, COALESCE(original_price, 0), stock, is_active, is_featured, images, sort_order,
	created_at, updated_at`

const (
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products
		WHERE slug = $1 AND is_active`

	listActiveProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active ORDER BY sort_order, name`

	listFeaturedProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active AND is_featured ORDER BY sort_order, created_at DESC LIMIT $1`

	listByCategorySQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active AND category_id = $1 ORDER BY sort_order, name`

	listRelatedSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active AND category_id = $1 AND id != $2
		ORDER BY sort_order, created_at DESC LIMIT $3`

	searchProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE is_active AND (name ILIKE $1 OR short_description ILIKE $1 OR description ILIKE $1)
		ORDER BY name`

	insertProductSQL = `INSERT INTO products (id, category_id, name, slug, sku,
		short_description, description, price, original_price, stock, is_active,
		is_featured, images, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0::numeric), $10, $11, $12, $13, $14, $15)`

	updateProductSQL = `UPDATE products SET category_id = $2, name = $3, slug = $4, sku = $5,
		short_description = $6, description = $7, price = $8, original_price = NULLIF($9, 0::numeric),
		stock = $10, is_active = $11, is_featured = $12, images = $13, sort_order = $14,
		updated_at = now()
		WHERE id = $1`
)

var _ product.AdminRepository = (*ProductRepository)(nil)

// ProductRepository implements product.AdminRepository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier, active or not.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetBySlug returns an active product by its storefront slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*product.Product, error) {
	return r.getOne(ctx, getProductBySlugSQL, slug)
}

// ListActive returns all active products in storefront order.
func (r *ProductRepository) ListActive(ctx context.Context) ([]product.Product, error) {
	return r.list(ctx, listActiveProductsSQL)
}

// ListFeatured returns up to limit featured products.
func (r *ProductRepository) ListFeatured(ctx context.Context, limit int) ([]product.Product, error) {
	return r.list(ctx, listFeaturedProductsSQL, limit)
}

// ListByCategory returns the active products of one category.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID string) ([]product.Product, error) {
	return r.list(ctx, listByCategorySQL, categoryID)
}

// ListRelated returns up to limit active products sharing p's category.
func (r *ProductRepository) ListRelated(ctx context.Context, p *product.Product, limit int) ([]product.Product, error) {
	return r.list(ctx, listRelatedSQL, p.CategoryID, p.ID, limit)
}

// Search returns active products matching the query in name or description.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]product.Product, error) {
	return r.list(ctx, searchProductsSQL, "%"+query+"%")
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return errors.Wrap(err, "marshal images")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.CategoryID, p.Name, p.Slug, p.SKU, p.ShortDescription, p.Description,
		p.Price, p.OriginalPrice, p.Stock, p.IsActive, p.IsFeatured, images,
		p.SortOrder, p.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// Update rewrites all mutable product fields.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return errors.Wrap(err, "marshal images")
	}

	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.CategoryID, p.Name, p.Slug, p.SKU, p.ShortDescription, p.Description,
		p.Price, p.OriginalPrice, p.Stock, p.IsActive, p.IsFeatured, images, p.SortOrder,
	)
	if err != nil {
		return errors.Wrapf(err, "update product %q", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, args ...any) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query product")
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan product")
	}
	return &p, nil
}

func (r *ProductRepository) list(ctx context.Context, sql string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p       product.Product
		updated *time.Time
	)
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.SKU, &p.ShortDescription,
		&p.Description, &p.Price, &p.OriginalPrice, &p.Stock, &p.IsActive,
		&p.IsFeatured, &p.Images, &p.SortOrder, &p.CreatedAt, &updated,
	)
	if updated != nil {
		p.UpdatedAt = *updated
	}
	return p, err
}
