package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/events"
	"catalog-service/internal/pipeline"
	"catalog-service/internal/repository"
)

// DefaultMaxCategoriesPerProduct bounds the categories one product may join.
const DefaultMaxCategoriesPerProduct = 10

// ProductInput carries a create or update request. Nil fields were not
// supplied; on update they leave the stored value untouched.
type ProductInput struct {
	ID              string                       `json:"-"`
	SKU             *string                      `json:"sku" validate:"omitempty,max=128"`
	Title           *string                      `json:"title" validate:"omitempty,max=255"`
	Description     *string                      `json:"description"`
	Brand           *string                      `json:"brand" validate:"omitempty,max=255"`
	Status          *domain.ProductStatus        `json:"status" validate:"omitempty,oneof=DRAFT ONLINE"`
	TaxCode         *string                      `json:"taxCode" validate:"omitempty,max=64"`
	StockStatus     *domain.StockStatus          `json:"stockStatus" validate:"omitempty,oneof=NORMAL UNLIMITED DISCONTINUED"`
	IsNetPrice      *bool                        `json:"isNetPrice"`
	Categories      []string                     `json:"categories"`
	Prices          []PriceInput                 `json:"prices"`
	Classifications []domain.ClassificationValue `json:"classifications" validate:"dive"`
	Medias          []domain.Media               `json:"medias" validate:"dive"`
	Base            *string                      `json:"base"`
	Variations      []domain.Variation           `json:"variations" validate:"dive"`
	Modifiers       []string                     `json:"modifiers"`
	Variants        []string                     `json:"variants"`
}

// ChangePublisher emits entity change events.
type ChangePublisher interface {
	Publish(ctx context.Context, channel string, change events.ChangeType, newValue, oldValue, data any)
}

// ProductCache is the read-through cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// ProductPage is one page of a product listing. CategoryPaths maps each
// category id referenced on the page to its path when requested.
type ProductPage struct {
	Page          repository.Page
	Products      []*domain.Product
	CategoryPaths map[string]string
}

// ProductServiceConfig holds the tunables of the product service.
type ProductServiceConfig struct {
	MaxCategoriesPerProduct int
	ProductsChannel         string
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, in ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter repository.ProductFilter, withCategoryPaths bool) (*ProductPage, error)
	RepairLinks(ctx context.Context) (*RepairReport, error)
}

// productContext is threaded through the create and update pipelines.
type productContext struct {
	id    string
	input ProductInput
	old   *domain.Product

	categoryIDs     []string
	categories      []*domain.Category
	classifications []domain.ClassificationValue
	classified      bool
	prices          []domain.Price
	composition     *Composition

	saved *domain.Product
}

type productService struct {
	products  repository.ProductRepository
	tree      *CategoryTree
	resolver  *ClassificationResolver
	validator *PriceValidator
	linker    *VariantLinker
	publisher ChangePublisher
	cache     ProductCache
	cfg       ProductServiceConfig
	logger    *zap.Logger

	create *pipeline.Pipeline[productContext]
	update *pipeline.Pipeline[productContext]
}

// NewProductService creates a new instance of ProductService. cache may be nil.
func NewProductService(
	products repository.ProductRepository,
	tree *CategoryTree,
	linker *VariantLinker,
	publisher ChangePublisher,
	cache ProductCache,
	cfg ProductServiceConfig,
	logger *zap.Logger,
) ProductService {
	if cfg.MaxCategoriesPerProduct <= 0 {
		cfg.MaxCategoriesPerProduct = DefaultMaxCategoriesPerProduct
	}
	if cfg.ProductsChannel == "" {
		cfg.ProductsChannel = "products"
	}

	s := &productService{
		products:  products,
		tree:      tree,
		resolver:  NewClassificationResolver(tree),
		validator: NewPriceValidator(),
		linker:    linker,
		publisher: publisher,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
	}

	classificationsSupplied := func(c *productContext) bool {
		return c.input.Categories != nil || c.input.Classifications != nil
	}
	pricesSupplied := func(c *productContext) bool { return c.input.Prices != nil }

	s.create = pipeline.New("product.create", logger,
		pipeline.Func("loadReferencedCategories", s.loadReferencedCategories),
		pipeline.Func("validateClassifications", s.validateClassifications),
		pipeline.Func("validatePrices", s.validatePrices),
		pipeline.Func("validateVariantConsistency", s.validateVariantConsistency),
		pipeline.Func("persist", s.persist),
		pipeline.Func("repairVariantLinks", s.repairVariantLinks),
		pipeline.Func("publishChangeEvent", s.publishCreated),
	)
	s.update = pipeline.New("product.update", logger,
		pipeline.Func("loadExistingProduct", s.loadExistingProduct),
		pipeline.When(classificationsSupplied, pipeline.Func("loadReferencedCategories", s.loadReferencedCategories)),
		pipeline.When(classificationsSupplied, pipeline.Func("validateClassifications", s.validateClassifications)),
		pipeline.When(pricesSupplied, pipeline.Func("validatePrices", s.validatePrices)),
		pipeline.Func("validateVariantConsistency", s.validateVariantConsistency),
		pipeline.Func("applyAllowListedFieldUpdate", s.applyUpdate),
		pipeline.Func("repairVariantLinks", s.repairVariantLinks),
		pipeline.Func("publishChangeEvent", s.publishUpdated),
	)

	return s
}

// Create validates in and stores a new product.
func (s *productService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	in.ID = uuid.NewString()
	c := &productContext{id: in.ID, input: in}
	if err := s.create.Run(ctx, c); err != nil {
		return nil, err
	}
	return c.saved, nil
}

// Update validates the supplied fields of in and applies them to product id.
func (s *productService) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	in.ID = id
	c := &productContext{id: id, input: in}
	if err := s.update.Run(ctx, c); err != nil {
		return nil, err
	}
	return c.saved, nil
}

// Remove deletes the product, announces it and detaches it from its base.
func (s *productService) Remove(ctx context.Context, id string) error {
	removed, err := s.products.Delete(ctx, id)
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, s.cfg.ProductsChannel, events.ChangeRemove, nil, removed.ToClient(), nil)

	if err := s.linker.Unlink(ctx, removed); err != nil {
		s.logger.Error("Failed to unlink removed variant",
			zap.String("product_id", removed.ID), zap.String("base_id", removed.Base), zap.Error(err))
	}

	s.logger.Debug("Product removed", zap.String("product_id", id))
	return nil
}

// Get returns a product, serving from the cache when possible. Cache errors
// are logged and fall through to the repository.
func (s *productService) Get(ctx context.Context, id string) (*domain.Product, error) {
	if s.cache != nil {
		var cached domain.Product
		found, err := s.cache.Get(ctx, id, &cached)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, product); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, filter repository.ProductFilter, withCategoryPaths bool) (*ProductPage, error) {
	filter.Page = filter.Page.Normalize()
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &ProductPage{Page: filter.Page, Products: products}
	if !withCategoryPaths {
		return page, nil
	}

	ids := []string{}
	seen := map[string]bool{}
	for _, p := range products {
		for _, id := range p.Categories {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	paths, err := s.tree.Paths(ctx, ids)
	if err != nil {
		return nil, err
	}
	page.CategoryPaths = paths
	return page, nil
}

func (s *productService) RepairLinks(ctx context.Context) (*RepairReport, error) {
	return s.linker.RepairAll(ctx)
}

func (s *productService) loadExistingProduct(ctx context.Context, c *productContext) error {
	old, err := s.products.FindByID(ctx, c.id)
	if err != nil {
		return err
	}
	c.old = old
	return nil
}

// loadReferencedCategories de-duplicates the category ids, enforces the
// per-product maximum and loads each category.
func (s *productService) loadReferencedCategories(ctx context.Context, c *productContext) error {
	ids := c.input.Categories
	if ids == nil && c.old != nil {
		ids = c.old.Categories
	}

	unique := dedupe(ids)
	if len(unique) > s.cfg.MaxCategoriesPerProduct {
		return domain.NewError(domain.KindMaxCategoriesPerProduct, s.cfg.MaxCategoriesPerProduct)
	}

	categories := make([]*domain.Category, 0, len(unique))
	for _, id := range unique {
		category, err := s.tree.Get(ctx, id)
		if err != nil {
			return err
		}
		categories = append(categories, category)
	}

	c.categoryIDs = unique
	c.categories = categories
	return nil
}

func (s *productService) validateClassifications(ctx context.Context, c *productContext) error {
	supplied := c.input.Classifications
	if supplied == nil && c.old != nil {
		supplied = c.old.Classifications
	}

	resolved, err := s.resolver.ResolveFor(ctx, c.categories, supplied)
	if err != nil {
		return err
	}
	c.classifications = resolved
	c.classified = true
	return nil
}

func (s *productService) validatePrices(_ context.Context, c *productContext) error {
	prices, err := s.validator.Validate(c.input.Prices)
	if err != nil {
		return err
	}
	c.prices = prices
	return nil
}

func (s *productService) validateVariantConsistency(ctx context.Context, c *productContext) error {
	comp, err := s.linker.Classify(ctx, &c.input, c.old)
	if err != nil {
		return err
	}
	c.composition = comp
	return nil
}

func (s *productService) persist(ctx context.Context, c *productContext) error {
	in := c.input
	p := &domain.Product{
		ID:              c.id,
		SKU:             deref(in.SKU),
		Title:           deref(in.Title),
		Description:     deref(in.Description),
		Brand:           deref(in.Brand),
		Status:          domain.ProductStatusDraft,
		Type:            c.composition.Type,
		TaxCode:         domain.DefaultTaxCode,
		StockStatus:     domain.StockStatusNormal,
		Categories:      c.categoryIDs,
		Prices:          c.prices,
		Classifications: c.classifications,
		Medias:          in.Medias,
		Modifiers:       in.Modifiers,
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.TaxCode != nil && *in.TaxCode != "" {
		p.TaxCode = *in.TaxCode
	}
	if in.StockStatus != nil {
		p.StockStatus = *in.StockStatus
	}
	if in.IsNetPrice != nil {
		p.IsNetPrice = *in.IsNetPrice
	}
	if p.Type == domain.ProductTypeVariant {
		p.Base = in.baseID()
		p.Variations = c.composition.Variations
		p.Modifiers = nil
	}

	if err := s.products.Create(ctx, p); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	c.saved = p
	return nil
}

func (s *productService) applyUpdate(ctx context.Context, c *productContext) error {
	in := c.input
	patch := &domain.ProductPatch{
		SKU:         nonEmpty(in.SKU),
		Title:       nonEmpty(in.Title),
		Description: in.Description,
		Brand:       in.Brand,
		Status:      in.Status,
		TaxCode:     in.TaxCode,
		StockStatus: in.StockStatus,
		IsNetPrice:  in.IsNetPrice,
		Medias:      in.Medias,
		Modifiers:   in.Modifiers,
		Type:        c.composition.Type,
	}
	if in.Categories != nil {
		patch.Categories = c.categoryIDs
	}
	if c.classified {
		patch.Classifications = c.classifications
	}
	if in.Prices != nil {
		patch.Prices = c.prices
	}
	if in.baseID() != "" {
		patch.Base = in.Base
	}
	if in.Variations != nil {
		patch.Variations = c.composition.Variations
	}

	saved, err := s.products.Update(ctx, c.id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.NewError(domain.KindProductNotSaved, c.id)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	c.saved = saved
	return nil
}

// repairVariantLinks is best effort: the product is already stored, so a
// failure here is logged and the request still succeeds.
func (s *productService) repairVariantLinks(ctx context.Context, c *productContext) error {
	if err := s.linker.RepairLinks(ctx, c.saved); err != nil {
		s.logger.Error("Failed to repair variant links",
			zap.String("product_id", c.saved.ID), zap.String("base_id", c.saved.Base), zap.Error(err))
	}
	return nil
}

func (s *productService) publishCreated(ctx context.Context, c *productContext) error {
	s.publisher.Publish(ctx, s.cfg.ProductsChannel, events.ChangeCreate, c.saved.ToClient(), nil, c.input)
	s.logger.Debug("Product created", zap.String("product_id", c.saved.ID))
	return nil
}

func (s *productService) publishUpdated(ctx context.Context, c *productContext) error {
	s.publisher.Publish(ctx, s.cfg.ProductsChannel, events.ChangeUpdate, c.saved.ToClient(), c.old.ToClient(), c.input)
	s.logger.Debug("Product updated", zap.String("product_id", c.saved.ID))
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// nonEmpty drops an empty string so an update cannot blank a required field.
func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
