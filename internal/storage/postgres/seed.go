package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlon/podstore/internal/domain/auth"
	"github.com/averlon/podstore/internal/domain/product"
)

const (
	upsertCategorySQL = `
		INSERT INTO categories (id, name, slug, description, parent_id, sort_order, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (slug) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			parent_id   = EXCLUDED.parent_id,
			sort_order  = EXCLUDED.sort_order,
			is_active   = EXCLUDED.is_active
		RETURNING id`

	upsertProductSQL = `
		INSERT INTO products (
			id, category_id, name, slug, sku, short_description, description,
			price, original_price, stock, is_active, is_featured, images, sort_order
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0::numeric), $10, $11, $12, $13, $14)
		ON CONFLICT (sku) DO UPDATE SET
			category_id       = EXCLUDED.category_id,
			name              = EXCLUDED.name,
			slug              = EXCLUDED.slug,
			short_description = EXCLUDED.short_description,
			description       = EXCLUDED.description,
			price             = EXCLUDED.price,
			original_price    = EXCLUDED.original_price,
			stock             = EXCLUDED.stock,
			is_active         = EXCLUDED.is_active,
			is_featured       = EXCLUDED.is_featured,
			images            = EXCLUDED.images,
			sort_order        = EXCLUDED.sort_order,
			updated_at        = now()
		RETURNING id`

	upsertAPIKeySQL = `
		INSERT INTO api_keys (key_hash, name)
		VALUES ($1, $2)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name`
)

// SeedStore provides the idempotent upsert operations used by the seed and
// import tools. Conflicts resolve on the natural keys (category slug, product
// SKU), so re-running a seed updates rows in place.
type SeedStore struct {
	pool *pgxpool.Pool
}

// NewSeedStore creates a SeedStore.
func NewSeedStore(pool *pgxpool.Pool) *SeedStore {
	return &SeedStore{pool: pool}
}

// UpsertCategory inserts or updates the category by slug and returns the
// canonical row ID, which may differ from c.ID when the slug already exists.
func (s *SeedStore) UpsertCategory(ctx context.Context, c *product.Category) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, upsertCategorySQL,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.SortOrder, c.IsActive,
	).Scan(&id)
	if err != nil {
		return "", errors.Wrapf(err, "upsert category %s", c.Slug)
	}
	return id, nil
}

// UpsertProduct inserts or updates the product by SKU and returns the
// canonical row ID.
func (s *SeedStore) UpsertProduct(ctx context.Context, p *product.Product) (string, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}

	var id string
	err := s.pool.QueryRow(ctx, upsertProductSQL,
		p.ID, p.CategoryID, p.Name, p.Slug, p.SKU, p.ShortDescription, p.Description,
		p.Price, p.OriginalPrice, p.Stock, p.IsActive, p.IsFeatured, images, p.SortOrder,
	).Scan(&id)
	if err != nil {
		return "", errors.Wrapf(err, "upsert product %s", p.SKU)
	}
	return id, nil
}

// UpsertAPIKey inserts or updates an admin API key by hash.
func (s *SeedStore) UpsertAPIKey(ctx context.Context, k *auth.APIKey) error {
	if _, err := s.pool.Exec(ctx, upsertAPIKeySQL, k.KeyHash, k.Name); err != nil {
		return errors.Wrapf(err, "upsert api key %s", k.Name)
	}
	return nil
}
