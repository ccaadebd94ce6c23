package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/pipeline"
	"catalog-service/internal/repository"
)

// CategoryInput is the payload of a category create.
type CategoryInput struct {
	Title           string                  `json:"title" validate:"required,max=255"`
	Description     string                  `json:"description"`
	Slug            string                  `json:"slug" validate:"omitempty,max=255"`
	Parent          string                  `json:"parent"`
	Classifications []domain.Classification `json:"classifications" validate:"dive"`
}

// CategoryPatch lists the fields a category update may change. Nil and empty
// values leave the stored field as it is.
type CategoryPatch struct {
	Title           *string                 `json:"title" validate:"omitempty,max=255"`
	Description     *string                 `json:"description"`
	Slug            *string                 `json:"slug" validate:"omitempty,max=255"`
	Parent          *string                 `json:"parent"`
	Classifications []domain.Classification `json:"classifications" validate:"dive"`
}

// CategoryUsage reports whether products still reference a category.
type CategoryUsage interface {
	ExistsInCategory(ctx context.Context, categoryID string) (bool, error)
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	Create(ctx context.Context, in CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, id string, patch CategoryPatch) (*domain.Category, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*domain.Category, error)
	Children(ctx context.Context, id string, recursive bool) ([]*domain.CategoryNode, error)
	List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, error)
	EnsureRoot(ctx context.Context) error
}

type categoryContext struct {
	id       string
	input    CategoryInput
	patch    CategoryPatch
	category *domain.Category
	parent   *domain.Category
}

type categoryService struct {
	tree   *CategoryTree
	usage  CategoryUsage
	logger *zap.Logger

	create *pipeline.Pipeline[categoryContext]
	update *pipeline.Pipeline[categoryContext]
	remove *pipeline.Pipeline[categoryContext]
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(tree *CategoryTree, usage CategoryUsage, logger *zap.Logger) CategoryService {
	s := &categoryService{tree: tree, usage: usage, logger: logger}

	s.create = pipeline.New("category.create", logger,
		pipeline.Func("ensureRoot", s.ensureRoot),
		pipeline.Func("resolveParent", s.resolveParent),
		pipeline.Func("persist", s.insert),
	)
	s.update = pipeline.New("category.update", logger,
		pipeline.Func("loadCategory", s.loadCategory),
		pipeline.Func("applyPatch", s.applyPatch),
		pipeline.When(func(c *categoryContext) bool { return c.patch.Parent != nil && *c.patch.Parent != "" },
			pipeline.Func("resolveNewParent", s.resolveNewParent)),
		pipeline.Func("persist", s.save),
	)
	s.remove = pipeline.New("category.remove", logger,
		pipeline.Func("loadCategory", s.loadCategory),
		pipeline.Func("ensureUnused", s.ensureUnused),
		pipeline.Func("detach", s.detach),
	)

	return s
}

func (s *categoryService) EnsureRoot(ctx context.Context) error {
	_, err := s.tree.EnsureRoot(ctx)
	return err
}

// Create adds a category under its parent, or under the root when no parent
// is given. The slug defaults to a slug of the title.
func (s *categoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	c := &categoryContext{input: in}
	if err := s.create.Run(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("Category created", zap.String("category_id", c.category.ID))
	return c.category, nil
}

// Update applies the supplied fields; a new parent moves the whole subtree.
func (s *categoryService) Update(ctx context.Context, id string, patch CategoryPatch) (*domain.Category, error) {
	c := &categoryContext{id: id, patch: patch}
	if err := s.update.Run(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("Category updated", zap.String("category_id", id))
	return c.category, nil
}

// Remove deletes an unused category; its children move up to its parent.
func (s *categoryService) Remove(ctx context.Context, id string) error {
	c := &categoryContext{id: id}
	if err := s.remove.Run(ctx, c); err != nil {
		return err
	}
	s.logger.Debug("Category removed", zap.String("category_id", id))
	return nil
}

func (s *categoryService) Get(ctx context.Context, id string) (*domain.Category, error) {
	return s.tree.Get(ctx, id)
}

func (s *categoryService) Children(ctx context.Context, id string, recursive bool) ([]*domain.CategoryNode, error) {
	return s.tree.Children(ctx, id, recursive)
}

func (s *categoryService) List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, error) {
	if err := s.EnsureRoot(ctx); err != nil {
		return nil, err
	}
	return s.tree.List(ctx, filter)
}

func (s *categoryService) ensureRoot(ctx context.Context, _ *categoryContext) error {
	return s.EnsureRoot(ctx)
}

func (s *categoryService) resolveParent(ctx context.Context, c *categoryContext) error {
	parent, err := s.tree.ResolveParent(ctx, c.input.Parent)
	if err != nil {
		return err
	}
	c.parent = parent
	return nil
}

func (s *categoryService) insert(ctx context.Context, c *categoryContext) error {
	in := c.input
	category := &domain.Category{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		Slug:            in.Slug,
		Classifications: in.Classifications,
	}
	if category.Slug == "" {
		category.Slug = slug.Make(in.Title)
	}

	if err := s.tree.Insert(ctx, category, c.parent); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	c.category = category
	return nil
}

func (s *categoryService) loadCategory(ctx context.Context, c *categoryContext) error {
	category, err := s.tree.Get(ctx, c.id)
	if err != nil {
		return err
	}
	c.category = category
	return nil
}

func (s *categoryService) applyPatch(_ context.Context, c *categoryContext) error {
	p := c.patch
	if p.Title != nil && *p.Title != "" {
		c.category.Title = *p.Title
	}
	if p.Description != nil && *p.Description != "" {
		c.category.Description = *p.Description
	}
	if p.Slug != nil && *p.Slug != "" {
		c.category.Slug = *p.Slug
	}
	if p.Classifications != nil {
		c.category.Classifications = p.Classifications
	}
	return nil
}

func (s *categoryService) resolveNewParent(ctx context.Context, c *categoryContext) error {
	if *c.patch.Parent == c.category.Parent {
		return nil
	}
	parent, err := s.tree.ResolveParent(ctx, *c.patch.Parent)
	if err != nil {
		return err
	}
	c.parent = parent
	return nil
}

func (s *categoryService) save(ctx context.Context, c *categoryContext) error {
	if c.parent != nil {
		return s.tree.Move(ctx, c.category, c.parent)
	}
	return s.tree.Save(ctx, c.category)
}

func (s *categoryService) ensureUnused(ctx context.Context, c *categoryContext) error {
	if c.category.IsRoot() {
		return domain.NewError(domain.KindRootCategoryImmutable, c.category.ID)
	}
	used, err := s.usage.ExistsInCategory(ctx, c.category.ID)
	if err != nil {
		return fmt.Errorf("failed to check category usage: %w", err)
	}
	if used {
		return domain.NewError(domain.KindCategoryNotEmpty, c.category.ID)
	}
	return nil
}

func (s *categoryService) detach(ctx context.Context, c *categoryContext) error {
	return s.tree.Detach(ctx, c.category)
}
