// Package memory holds map-backed repositories for local runs and tests.
// They honour the same uniqueness rules and sentinel errors as the postgres
// repositories. RunInTx is not isolated.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"
)

// clone deep-copies v through JSON so callers never share slices with the store.
func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func page[T any](items []T, p repository.Page) []T {
	p = p.Normalize()
	if p.Skip >= len(items) {
		return []T{}
	}
	end := p.Skip + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Skip:end]
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// CategoryRepository is an in-memory repository.CategoryRepository.
type CategoryRepository struct {
	mu         sync.RWMutex
	categories map[string]*domain.Category
	now        func() time.Time
}

func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{categories: make(map[string]*domain.Category), now: time.Now}
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

func (r *CategoryRepository) slugTaken(c *domain.Category) bool {
	for _, other := range r.categories {
		if other.ID != c.ID && other.Parent == c.Parent && other.Slug == c.Slug {
			return true
		}
	}
	return false
}

func (r *CategoryRepository) Create(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[category.ID]; exists || r.slugTaken(category) {
		return domain.NewError(domain.KindDuplicateKey, category.Slug)
	}
	category.CreatedAt = r.now()
	category.UpdatedAt = category.CreatedAt
	r.categories[category.ID] = clone(category)
	return nil
}

func (r *CategoryRepository) Update(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.categories[category.ID]
	if !ok {
		return domain.NewError(domain.KindCategoryNotFound, category.ID)
	}
	if r.slugTaken(category) {
		return domain.NewError(domain.KindDuplicateKey, category.Slug)
	}
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = r.now()
	r.categories[category.ID] = clone(category)
	return nil
}

func (r *CategoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return domain.NewError(domain.KindCategoryNotFound, id)
	}
	delete(r.categories, id)
	return nil
}

func (r *CategoryRepository) FindByID(_ context.Context, id string) (*domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, domain.NewError(domain.KindCategoryNotFound, id)
	}
	return clone(c), nil
}

func (r *CategoryRepository) FindByIDs(_ context.Context, ids []string) ([]*domain.Category, error) {
	return r.filter(func(c *domain.Category) bool { return contains(ids, c.ID) }, byPath), nil
}

func (r *CategoryRepository) List(_ context.Context, f repository.CategoryFilter) ([]*domain.Category, error) {
	matched := r.filter(func(c *domain.Category) bool {
		return (len(f.IDs) == 0 || contains(f.IDs, c.ID)) &&
			(len(f.Parents) == 0 || contains(f.Parents, c.Parent)) &&
			(len(f.Slugs) == 0 || contains(f.Slugs, c.Slug)) &&
			hasPrefixFold(c.Title, f.Title) &&
			hasPrefixFold(c.Description, f.Description) &&
			strings.HasPrefix(c.Path, f.Path)
	}, byPath)
	return page(matched, f.Page), nil
}

func (r *CategoryRepository) Children(_ context.Context, parentID string) ([]*domain.Category, error) {
	return r.filter(func(c *domain.Category) bool { return c.Parent == parentID }, byTitle), nil
}

func (r *CategoryRepository) Descendants(_ context.Context, path string) ([]*domain.Category, error) {
	prefix := path + domain.PathSeparator
	return r.filter(func(c *domain.Category) bool { return strings.HasPrefix(c.Path, prefix) }, byPath), nil
}

func (r *CategoryRepository) Ancestors(_ context.Context, ids []string) ([]*domain.Category, error) {
	return r.filter(func(c *domain.Category) bool { return contains(ids, c.ID) }, func(a, b *domain.Category) bool {
		return len(a.Path) < len(b.Path)
	}), nil
}

func (r *CategoryRepository) ReplacePathPrefix(_ context.Context, oldPrefix, newPrefix string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, c := range r.categories {
		if strings.HasPrefix(c.Path, oldPrefix+domain.PathSeparator) {
			c.Path = newPrefix + c.Path[len(oldPrefix):]
			n++
		}
	}
	return n, nil
}

func (r *CategoryRepository) ReparentChildren(_ context.Context, fromID, toID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moving []*domain.Category
	for _, c := range r.categories {
		if c.Parent == fromID {
			moving = append(moving, c)
		}
	}
	// nothing moves when one of the children clashes with a new sibling
	for _, c := range moving {
		if r.slugTaken(&domain.Category{ID: c.ID, Parent: toID, Slug: c.Slug}) {
			return 0, domain.NewError(domain.KindDuplicateKey, c.Slug)
		}
	}
	for _, c := range moving {
		c.Parent = toID
	}
	return int64(len(moving)), nil
}

func (r *CategoryRepository) RunInTx(_ context.Context, fn func(repository.CategoryRepository) error) error {
	return fn(r)
}

func byPath(a, b *domain.Category) bool  { return a.Path < b.Path }
func byTitle(a, b *domain.Category) bool { return a.Title < b.Title }

func (r *CategoryRepository) filter(keep func(*domain.Category) bool, less func(a, b *domain.Category) bool) []*domain.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Category{}
	for _, c := range r.categories {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ProductRepository is an in-memory repository.ProductRepository.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	seq      int64
	order    map[string]int64
	now      func() time.Time
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		products: make(map[string]*domain.Product),
		order:    make(map[string]int64),
		now:      time.Now,
	}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

func (r *ProductRepository) skuTaken(id, sku string) bool {
	for _, other := range r.products {
		if other.ID != id && other.SKU == sku {
			return true
		}
	}
	return false
}

func (r *ProductRepository) Create(_ context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists || r.skuTaken(product.ID, product.SKU) {
		return domain.NewError(domain.KindDuplicateKey, product.SKU)
	}
	product.CreatedAt = r.now()
	product.UpdatedAt = product.CreatedAt
	r.seq++
	r.order[product.ID] = r.seq
	r.products[product.ID] = clone(product)
	return nil
}

func (r *ProductRepository) Update(_ context.Context, id string, patch *domain.ProductPatch) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[id]
	if !ok {
		return nil, domain.NewError(domain.KindProductNotFound, id)
	}
	if patch.SKU != nil && r.skuTaken(id, *patch.SKU) {
		return nil, domain.NewError(domain.KindDuplicateKey, "sku")
	}

	updated := clone(existing)
	patch.Apply(updated)
	updated.UpdatedAt = r.now()
	r.products[id] = updated
	return clone(updated), nil
}

func (r *ProductRepository) Delete(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[id]
	if !ok {
		return nil, domain.NewError(domain.KindProductNotFound, id)
	}
	delete(r.products, id)
	delete(r.order, id)
	return existing, nil
}

func (r *ProductRepository) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.NewError(domain.KindProductNotFound, id)
	}
	return clone(p), nil
}

func (r *ProductRepository) List(_ context.Context, f repository.ProductFilter) ([]*domain.Product, error) {
	matched := r.filter(func(p *domain.Product) bool {
		return (len(f.IDs) == 0 || contains(f.IDs, p.ID)) &&
			(len(f.SKUs) == 0 || contains(f.SKUs, p.SKU)) &&
			(len(f.Statuses) == 0 || contains(f.Statuses, string(p.Status))) &&
			(len(f.Types) == 0 || contains(f.Types, string(p.Type))) &&
			(len(f.TaxCodes) == 0 || contains(f.TaxCodes, p.TaxCode)) &&
			(len(f.StockStatuses) == 0 || contains(f.StockStatuses, string(p.StockStatus))) &&
			(len(f.Bases) == 0 || contains(f.Bases, p.Base)) &&
			(len(f.Categories) == 0 || overlaps(f.Categories, p.Categories)) &&
			containsFold(p.Title, f.Title) &&
			containsFold(p.Description, f.Description) &&
			containsFold(p.Brand, f.Brand) &&
			(f.IsNetPrice == nil || *f.IsNetPrice == p.IsNetPrice)
	})
	return page(matched, f.Page), nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

func (r *ProductRepository) ExistsInCategory(_ context.Context, categoryID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.products {
		if contains(p.Categories, categoryID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ProductRepository) AddVariant(_ context.Context, baseID, variantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if base, ok := r.products[baseID]; ok && !contains(base.Variants, variantID) {
		base.Variants = append(base.Variants, variantID)
	}
	return nil
}

func (r *ProductRepository) PullVariant(_ context.Context, baseID, variantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if base, ok := r.products[baseID]; ok {
		base.Variants = without(base.Variants, variantID)
	}
	return nil
}

func (r *ProductRepository) PullVariantFromOthers(_ context.Context, variantID, keepBaseID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, p := range r.products {
		if id != keepBaseID && contains(p.Variants, variantID) {
			p.Variants = without(p.Variants, variantID)
			n++
		}
	}
	return n, nil
}

func (r *ProductRepository) SetVariants(_ context.Context, baseID string, variants []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base, ok := r.products[baseID]
	if !ok {
		return domain.NewError(domain.KindProductNotFound, baseID)
	}
	base.Variants = append([]string{}, variants...)
	return nil
}

func (r *ProductRepository) ListComposed(_ context.Context) ([]*domain.Product, error) {
	return r.filter(func(p *domain.Product) bool {
		return p.Type == domain.ProductTypeBase || p.Type == domain.ProductTypeVariant || p.Base != ""
	}), nil
}

func without(values []string, drop string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}

// filter returns matching products newest first, like the postgres listing.
func (r *ProductRepository) filter(keep func(*domain.Product) bool) []*domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Product{}
	for _, p := range r.products {
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return r.order[out[i].ID] > r.order[out[j].ID] })
	return out
}
