package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"catalog-service/internal/domain"
)

// ProductFilter narrows a product list. Empty fields are ignored.
type ProductFilter struct {
	IDs           []string
	SKUs          []string
	Statuses      []string
	Types         []string
	TaxCodes      []string
	StockStatuses []string
	Bases         []string
	Categories    []string
	Title         string // case-insensitive substring
	Description   string // case-insensitive substring
	Brand         string // case-insensitive substring
	IsNetPrice    *bool
	Page          Page
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	// Create inserts product and its prices atomically.
	Create(ctx context.Context, product *domain.Product) error
	// Update applies patch to the product with the given id and returns the
	// stored result.
	Update(ctx context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error)
	// Delete removes the product and returns what was removed.
	Delete(ctx context.Context, id string) (*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	// ExistsInCategory reports whether any product references categoryID.
	ExistsInCategory(ctx context.Context, categoryID string) (bool, error)
	// AddVariant adds variantID to baseID's variants if not already present.
	AddVariant(ctx context.Context, baseID, variantID string) error
	// PullVariant removes variantID from baseID's variants.
	PullVariant(ctx context.Context, baseID, variantID string) error
	// PullVariantFromOthers removes variantID from the variants of every
	// product except keepBaseID.
	PullVariantFromOthers(ctx context.Context, variantID, keepBaseID string) (int64, error)
	// SetVariants overwrites baseID's variants.
	SetVariants(ctx context.Context, baseID string, variants []string) error
	// ListComposed returns every BASE and VARIANT product.
	ListComposed(ctx context.Context) ([]*domain.Product, error)
}

type productRepository struct {
	pool *pgxpool.Pool
	q    Querier
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepository{pool: pool, q: pool}
}

const productColumns = `id, sku, title, description, brand, status, type, tax_code, stock_status, is_net_price,
	categories, classifications, medias, COALESCE(base_id, ''), variations, modifiers, variants, created_at, updated_at`

func scanProduct(row pgx.Row) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Title,
		&p.Description,
		&p.Brand,
		&p.Status,
		&p.Type,
		&p.TaxCode,
		&p.StockStatus,
		&p.IsNetPrice,
		&p.Categories,
		&p.Classifications,
		&p.Medias,
		&p.Base,
		&p.Variations,
		&p.Modifiers,
		&p.Variants,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *productRepository) collect(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, sku, title, description, brand, status, type, tax_code, stock_status,
			is_net_price, categories, classifications, medias, base_id, variations, modifiers, variants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`

	return runInTx(ctx, r.pool, r.q, func(q Querier) error {
		err := q.QueryRow(
			ctx,
			query,
			product.ID,
			product.SKU,
			product.Title,
			product.Description,
			product.Brand,
			product.Status,
			product.Type,
			product.TaxCode,
			product.StockStatus,
			product.IsNetPrice,
			orEmpty(product.Categories),
			orEmpty(product.Classifications),
			orEmpty(product.Medias),
			nullable(product.Base),
			orEmpty(product.Variations),
			orEmpty(product.Modifiers),
			orEmpty(product.Variants),
		).Scan(&product.CreatedAt, &product.UpdatedAt)

		if err != nil {
			if isUniqueViolation(err) {
				return domain.NewError(domain.KindDuplicateKey, product.SKU)
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		return insertPrices(ctx, q, product.ID, product.Prices)
	})
}

func insertPrices(ctx context.Context, q Querier, productID string, prices []domain.Price) error {
	if len(prices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, price := range prices {
		batch.Queue(`
			INSERT INTO product_prices (product_id, id, position, amount, currency, country, customer_type,
				channel, valid_from, valid_until)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			productID,
			price.ID,
			i,
			price.Amount,
			price.Currency,
			nullable(price.Country),
			nullable(price.CustomerType),
			nullable(price.Channel),
			price.ValidFrom,
			price.ValidUntil,
		)
	}

	sender, ok := q.(interface {
		SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	})
	if !ok {
		return fmt.Errorf("failed to insert prices: querier cannot send batches")
	}

	results := sender.SendBatch(ctx, batch)
	defer results.Close()

	for range prices {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return domain.NewError(domain.KindDuplicateKey, "prices.id")
			}
			return fmt.Errorf("failed to insert price: %w", err)
		}
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error) {
	w := &whereBuilder{}
	set := []string{}
	assign := func(column string, value any) {
		set = append(set, column+" = "+w.next(value))
	}

	if patch.SKU != nil {
		assign("sku", *patch.SKU)
	}
	if patch.Title != nil {
		assign("title", *patch.Title)
	}
	if patch.Description != nil {
		assign("description", *patch.Description)
	}
	if patch.Brand != nil {
		assign("brand", *patch.Brand)
	}
	if patch.Status != nil {
		assign("status", *patch.Status)
	}
	if patch.TaxCode != nil {
		assign("tax_code", *patch.TaxCode)
	}
	if patch.StockStatus != nil {
		assign("stock_status", *patch.StockStatus)
	}
	if patch.IsNetPrice != nil {
		assign("is_net_price", *patch.IsNetPrice)
	}
	if patch.Categories != nil {
		assign("categories", patch.Categories)
	}
	if patch.Classifications != nil {
		assign("classifications", patch.Classifications)
	}
	if patch.Medias != nil {
		assign("medias", patch.Medias)
	}
	if patch.Base != nil {
		assign("base_id", nullable(*patch.Base))
	}
	if patch.Variations != nil {
		assign("variations", patch.Variations)
	}
	if patch.Modifiers != nil {
		assign("modifiers", patch.Modifiers)
	}
	if patch.Type != "" {
		assign("type", patch.Type)
	}
	if len(set) == 0 {
		// Touch the row so updated_at still moves and existence is checked.
		set = append(set, "id = id")
	}

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = %s RETURNING %s`,
		strings.Join(set, ", "), w.next(id), productColumns)

	var updated *domain.Product
	err := runInTx(ctx, r.pool, r.q, func(q Querier) error {
		p, err := scanProduct(q.QueryRow(ctx, query, w.args...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewError(domain.KindProductNotFound, id)
			}
			if isUniqueViolation(err) {
				return domain.NewError(domain.KindDuplicateKey, "sku")
			}
			return fmt.Errorf("failed to update product: %w", err)
		}

		if patch.Prices != nil {
			if _, err := q.Exec(ctx, `DELETE FROM product_prices WHERE product_id = $1`, id); err != nil {
				return fmt.Errorf("failed to replace prices: %w", err)
			}
			if err := insertPrices(ctx, q, id, patch.Prices); err != nil {
				return err
			}
		}

		if err := loadPrices(ctx, q, []*domain.Product{p}); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id string) (*domain.Product, error) {
	var removed *domain.Product
	err := runInTx(ctx, r.pool, r.q, func(q Querier) error {
		p, err := scanProduct(q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NewError(domain.KindProductNotFound, id)
			}
			return fmt.Errorf("failed to find product: %w", err)
		}
		if err := loadPrices(ctx, q, []*domain.Product{p}); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		removed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if err := loadPrices(ctx, r.q, []*domain.Product{p}); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	w := &whereBuilder{}
	inList := map[string][]string{
		"id":           filter.IDs,
		"sku":          filter.SKUs,
		"status":       filter.Statuses,
		"type":         filter.Types,
		"tax_code":     filter.TaxCodes,
		"stock_status": filter.StockStatuses,
		"base_id":      filter.Bases,
	}
	for _, column := range []string{"id", "sku", "status", "type", "tax_code", "stock_status", "base_id"} {
		if values := inList[column]; len(values) > 0 {
			w.add(column+" = ANY(?)", values)
		}
	}
	if len(filter.Categories) > 0 {
		w.add("categories && ?", filter.Categories)
	}
	for column, value := range map[string]string{"title": filter.Title, "description": filter.Description, "brand": filter.Brand} {
		if value != "" {
			w.add(column+" ILIKE ?", "%"+escapeLike(value)+"%")
		}
	}
	if filter.IsNetPrice != nil {
		w.add("is_net_price = ?", *filter.IsNetPrice)
	}

	page := filter.Page.Normalize()
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT %s OFFSET %s
	`, productColumns, w.clause(), w.next(page.Limit), w.next(page.Skip))

	products, err := r.collect(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}

	if err := loadPrices(ctx, r.q, products); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepository) ExistsInCategory(ctx context.Context, categoryID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE $1 = ANY(categories))`, categoryID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check category usage: %w", err)
	}
	return exists, nil
}

func (r *productRepository) AddVariant(ctx context.Context, baseID, variantID string) error {
	query := `
		UPDATE products
		SET variants = array_append(variants, $2)
		WHERE id = $1 AND NOT ($2 = ANY(variants))
	`
	if _, err := r.q.Exec(ctx, query, baseID, variantID); err != nil {
		return fmt.Errorf("failed to add variant: %w", err)
	}
	return nil
}

func (r *productRepository) PullVariant(ctx context.Context, baseID, variantID string) error {
	query := `UPDATE products SET variants = array_remove(variants, $2) WHERE id = $1 AND $2 = ANY(variants)`
	if _, err := r.q.Exec(ctx, query, baseID, variantID); err != nil {
		return fmt.Errorf("failed to pull variant: %w", err)
	}
	return nil
}

func (r *productRepository) PullVariantFromOthers(ctx context.Context, variantID, keepBaseID string) (int64, error) {
	query := `UPDATE products SET variants = array_remove(variants, $1) WHERE $1 = ANY(variants) AND id <> $2`
	tag, err := r.q.Exec(ctx, query, variantID, keepBaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to pull variant from other products: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *productRepository) SetVariants(ctx context.Context, baseID string, variants []string) error {
	tag, err := r.q.Exec(ctx, `UPDATE products SET variants = $2 WHERE id = $1`, baseID, orEmpty(variants))
	if err != nil {
		return fmt.Errorf("failed to set variants: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindProductNotFound, baseID)
	}
	return nil
}

func (r *productRepository) ListComposed(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE type IN ('BASE', 'VARIANT') OR base_id IS NOT NULL ORDER BY id`
	return r.collect(ctx, query)
}

func loadPrices(ctx context.Context, q Querier, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		p.Prices = []domain.Price{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, id, amount, currency, COALESCE(country, ''), COALESCE(customer_type, ''),
			COALESCE(channel, ''), valid_from, valid_until
		FROM product_prices
		WHERE product_id = ANY($1)
		ORDER BY product_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var price domain.Price
		if err := rows.Scan(
			&productID,
			&price.ID,
			&price.Amount,
			&price.Currency,
			&price.Country,
			&price.CustomerType,
			&price.Channel,
			&price.ValidFrom,
			&price.ValidUntil,
		); err != nil {
			return fmt.Errorf("failed to scan price: %w", err)
		}
		if p, ok := byID[productID]; ok {
			p.Prices = append(p.Prices, price)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating prices: %w", err)
	}

	return nil
}
