package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog-service/internal/domain"
)

// CategoryFilter narrows a category list. Empty fields are ignored.
type CategoryFilter struct {
	IDs         []string
	Parents     []string
	Slugs       []string
	Title       string // case-insensitive prefix
	Description string // case-insensitive prefix
	Path        string // path prefix
	Page        Page
}

// CategoryRepository defines the interface for category data access
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Category, error)
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Category, error)
	List(ctx context.Context, filter CategoryFilter) ([]*domain.Category, error)
	// Children returns the direct children of parentID ordered by title.
	Children(ctx context.Context, parentID string) ([]*domain.Category, error)
	// Descendants returns every node strictly below path, ordered by path.
	Descendants(ctx context.Context, path string) ([]*domain.Category, error)
	// Ancestors returns the nodes with the given ids ordered root first.
	Ancestors(ctx context.Context, ids []string) ([]*domain.Category, error)
	// ReplacePathPrefix rewrites oldPrefix to newPrefix on every node strictly
	// below oldPrefix and returns the number of rows touched.
	ReplacePathPrefix(ctx context.Context, oldPrefix, newPrefix string) (int64, error)
	// ReparentChildren moves the direct children of fromID under toID.
	ReparentChildren(ctx context.Context, fromID, toID string) (int64, error)
	// RunInTx runs fn with a repository bound to a single transaction.
	RunInTx(ctx context.Context, fn func(CategoryRepository) error) error
}

type categoryRepository struct {
	pool *pgxpool.Pool
	q    Querier
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool, q: pool}
}

const categoryColumns = `id, COALESCE(parent_id, ''), title, description, slug, path, classifications, created_at, updated_at`

func scanCategory(row pgx.Row) (*domain.Category, error) {
	c := &domain.Category{}
	err := row.Scan(
		&c.ID,
		&c.Parent,
		&c.Title,
		&c.Description,
		&c.Slug,
		&c.Path,
		&c.Classifications,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *categoryRepository) collect(ctx context.Context, query string, args ...any) ([]*domain.Category, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a new category. A sibling with the same slug, or a reused
// id, yields domain.ErrDuplicateKey.
func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	query := `
		INSERT INTO categories (id, parent_id, title, description, slug, path, classifications)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(
		ctx,
		query,
		category.ID,
		nullable(category.Parent),
		category.Title,
		category.Description,
		category.Slug,
		category.Path,
		orEmpty(category.Classifications),
	).Scan(&category.CreatedAt, &category.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.KindDuplicateKey, category.Slug)
		}
		return fmt.Errorf("failed to create category: %w", err)
	}

	return nil
}

// Update writes the mutable fields of category including its parent and path.
func (r *categoryRepository) Update(ctx context.Context, category *domain.Category) error {
	query := `
		UPDATE categories
		SET parent_id = $2, title = $3, description = $4, slug = $5, path = $6, classifications = $7
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(
		ctx,
		query,
		category.ID,
		nullable(category.Parent),
		category.Title,
		category.Description,
		category.Slug,
		category.Path,
		orEmpty(category.Classifications),
	).Scan(&category.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewError(domain.KindCategoryNotFound, category.ID)
		}
		if isUniqueViolation(err) {
			return domain.NewError(domain.KindDuplicateKey, category.Slug)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	return nil
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindCategoryNotFound, id)
	}

	return nil
}

func (r *categoryRepository) FindByID(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	c, err := scanCategory(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindCategoryNotFound, id)
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return c, nil
}

// FindByIDs returns the categories that exist among ids, in no particular order.
func (r *categoryRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return []*domain.Category{}, nil
	}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1)`
	return r.collect(ctx, query, ids)
}

func (r *categoryRepository) List(ctx context.Context, filter CategoryFilter) ([]*domain.Category, error) {
	w := &whereBuilder{}
	if len(filter.IDs) > 0 {
		w.add("id = ANY(?)", filter.IDs)
	}
	if len(filter.Parents) > 0 {
		w.add("parent_id = ANY(?)", filter.Parents)
	}
	if len(filter.Slugs) > 0 {
		w.add("slug = ANY(?)", filter.Slugs)
	}
	if filter.Title != "" {
		w.add("title ILIKE ?", escapeLike(filter.Title)+"%")
	}
	if filter.Description != "" {
		w.add("description ILIKE ?", escapeLike(filter.Description)+"%")
	}
	if filter.Path != "" {
		w.add("path LIKE ?", escapeLike(filter.Path)+"%")
	}

	page := filter.Page.Normalize()
	query := fmt.Sprintf(`
		SELECT %s
		FROM categories
		%s
		ORDER BY path ASC
		LIMIT %s OFFSET %s
	`, categoryColumns, w.clause(), w.next(page.Limit), w.next(page.Skip))

	return r.collect(ctx, query, w.args...)
}

func (r *categoryRepository) Children(ctx context.Context, parentID string) ([]*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE parent_id = $1 ORDER BY title ASC`
	return r.collect(ctx, query, parentID)
}

func (r *categoryRepository) Descendants(ctx context.Context, path string) ([]*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE starts_with(path, $1) ORDER BY path ASC`
	return r.collect(ctx, query, path+domain.PathSeparator)
}

func (r *categoryRepository) Ancestors(ctx context.Context, ids []string) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return []*domain.Category{}, nil
	}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ANY($1) ORDER BY length(path) ASC`
	return r.collect(ctx, query, ids)
}

func (r *categoryRepository) ReplacePathPrefix(ctx context.Context, oldPrefix, newPrefix string) (int64, error) {
	query := `
		UPDATE categories
		SET path = $2 || substr(path, length($1) + 1)
		WHERE starts_with(path, $1 || '.')
	`

	tag, err := r.q.Exec(ctx, query, oldPrefix, newPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite category paths: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *categoryRepository) ReparentChildren(ctx context.Context, fromID, toID string) (int64, error) {
	tag, err := r.q.Exec(ctx, `UPDATE categories SET parent_id = $2 WHERE parent_id = $1`, fromID, toID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.NewError(domain.KindDuplicateKey, fromID)
		}
		return 0, fmt.Errorf("failed to reparent categories: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *categoryRepository) RunInTx(ctx context.Context, fn func(CategoryRepository) error) error {
	return runInTx(ctx, r.pool, r.q, func(q Querier) error {
		return fn(&categoryRepository{pool: r.pool, q: q})
	})
}
