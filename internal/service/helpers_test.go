package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap"

	"catalog-service/internal/events"
	"catalog-service/internal/repository/memory"
)

type recordedChange struct {
	channel  string
	change   events.ChangeType
	newValue any
	oldValue any
	data     any
}

// recordingPublisher captures change events synchronously.
type recordingPublisher struct {
	mu      sync.Mutex
	changes []recordedChange
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, change events.ChangeType, newValue, oldValue, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, recordedChange{channel, change, newValue, oldValue, data})
}

func (p *recordingPublisher) last() recordedChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changes[len(p.changes)-1]
}

// mapCache is a ProductCache kept in a map of JSON documents.
type mapCache struct {
	mu    sync.Mutex
	items map[string][]byte
	gets  int
	hits  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.items[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

func (c *mapCache) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

type fixture struct {
	categories *memory.CategoryRepository
	products   *memory.ProductRepository
	tree       *CategoryTree
	linker     *VariantLinker
	publisher  *recordingPublisher
	cache      *mapCache

	categorySvc CategoryService
	productSvc  ProductService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	f := &fixture{
		categories: memory.NewCategoryRepository(),
		products:   memory.NewProductRepository(),
		publisher:  &recordingPublisher{},
		cache:      newMapCache(),
	}
	f.tree = NewCategoryTree(f.categories, logger)
	f.linker = NewVariantLinker(f.products, logger)
	f.categorySvc = NewCategoryService(f.tree, f.products, logger)
	f.productSvc = NewProductService(f.products, f.tree, f.linker, f.publisher, f.cache, ProductServiceConfig{
		MaxCategoriesPerProduct: 3,
		ProductsChannel:         "products",
	}, logger)
	return f
}

func ptr[T any](v T) *T {
	return &v
}
