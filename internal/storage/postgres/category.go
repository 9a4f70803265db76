package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlon/podstore/internal/domain/product"
)

const categoryColumns = `id, name, slug, description, COALESCE(parent_id, ''), sort_order, is_active`

const (
	getCategoryBySlugSQL = `SELECT ` + categoryColumns + ` FROM categories
		WHERE slug = $1 AND is_active`

	listActiveCategoriesSQL = `SELECT ` + categoryColumns + ` FROM categories
		WHERE is_active ORDER BY sort_order, name`

	listRootCategoriesSQL = `SELECT ` + categoryColumns + ` FROM categories
		WHERE is_active AND parent_id IS NULL ORDER BY sort_order, name`

	insertCategorySQL = `INSERT INTO categories (id, name, slug, description, parent_id, sort_order, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`

	updateCategorySQL = `UPDATE categories SET name = $2, slug = $3, description = $4,
		parent_id = NULLIF($5, ''), sort_order = $6, is_active = $7
		WHERE id = $1`
)

var _ product.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements product.CategoryRepository backed by
// PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// GetBySlug returns an active category by its slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*product.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryBySlugSQL, slug)
	if err != nil {
		return nil, errors.Wrap(err, "query category")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan category")
	}
	return &c, nil
}

// ListActive returns all active categories in navigation order.
func (r *CategoryRepository) ListActive(ctx context.Context) ([]product.Category, error) {
	return r.list(ctx, listActiveCategoriesSQL)
}

// ListRoot returns the active top-level categories.
func (r *CategoryRepository) ListRoot(ctx context.Context) ([]product.Category, error) {
	return r.list(ctx, listRootCategoriesSQL)
}

// Create persists a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *product.Category) error {
	_, err := r.pool.Exec(ctx, insertCategorySQL,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.SortOrder, c.IsActive,
	)
	if err != nil {
		return errors.Wrapf(err, "create category %q", c.ID)
	}
	return nil
}

// Update rewrites all mutable category fields.
func (r *CategoryRepository) Update(ctx context.Context, c *product.Category) error {
	tag, err := r.pool.Exec(ctx, updateCategorySQL,
		c.ID, c.Name, c.Slug, c.Description, c.ParentID, c.SortOrder, c.IsActive,
	)
	if err != nil {
		return errors.Wrapf(err, "update category %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) list(ctx context.Context, sql string) ([]product.Category, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, "query categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

func scanCategory(row pgx.CollectableRow) (product.Category, error) {
	var c product.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.SortOrder, &c.IsActive)
	return c, err
}
