package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"
)

// CategoryTree maintains the materialized-path category hierarchy.
type CategoryTree struct {
	repo   repository.CategoryRepository
	logger *zap.Logger
}

func NewCategoryTree(repo repository.CategoryRepository, logger *zap.Logger) *CategoryTree {
	return &CategoryTree{repo: repo, logger: logger}
}

func newRootCategory() *domain.Category {
	return &domain.Category{
		ID:          domain.RootCategoryID,
		Title:       "Root Category",
		Description: "Root Category",
		Slug:        "root",
		Path:        domain.RootCategoryID,
	}
}

// EnsureRoot returns the root category, inserting it first if it is missing.
// Losing an insert race to another process is not an error.
func (t *CategoryTree) EnsureRoot(ctx context.Context) (*domain.Category, error) {
	root, err := t.repo.FindByID(ctx, domain.RootCategoryID)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		return nil, fmt.Errorf("failed to load root category: %w", err)
	}

	root = newRootCategory()
	if err := t.repo.Create(ctx, root); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return t.repo.FindByID(ctx, domain.RootCategoryID)
		}
		t.logger.Error("Root category not inserted", zap.Error(err))
		return nil, fmt.Errorf("failed to insert root category: %w", err)
	}

	t.logger.Info("Root category inserted")
	return root, nil
}

// Get loads a category by id. The root is materialized on first access.
func (t *CategoryTree) Get(ctx context.Context, id string) (*domain.Category, error) {
	c, err := t.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrCategoryNotFound) && id == domain.RootCategoryID {
		return t.EnsureRoot(ctx)
	}
	return c, err
}

// ResolveParent loads the parent for a new or moved node. An empty id
// resolves to the root.
func (t *CategoryTree) ResolveParent(ctx context.Context, parentID string) (*domain.Category, error) {
	if parentID == "" {
		return t.EnsureRoot(ctx)
	}

	parent, err := t.Get(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return nil, domain.NewError(domain.KindParentNotFound, parentID)
		}
		return nil, err
	}
	return parent, nil
}

// Insert stores c as a new child of parent.
func (t *CategoryTree) Insert(ctx context.Context, c, parent *domain.Category) error {
	c.Parent = parent.ID
	c.Path = domain.ChildPath(parent.Path, c.ID)
	return t.repo.Create(ctx, c)
}

// Save persists c without moving it.
func (t *CategoryTree) Save(ctx context.Context, c *domain.Category) error {
	return t.repo.Update(ctx, c)
}

// Move re-parents c under newParent and rewrites the paths of its whole
// subtree in the same transaction. Moving a node under itself or one of its
// descendants fails with invalid_parent_category.
func (t *CategoryTree) Move(ctx context.Context, c, newParent *domain.Category) error {
	if c.IsRoot() {
		return domain.NewError(domain.KindRootCategoryImmutable, c.ID)
	}
	if newParent.ID == c.ID || c.IsAncestorOf(newParent) {
		return domain.NewError(domain.KindInvalidParent, newParent.ID)
	}

	oldPath := c.Path
	c.Parent = newParent.ID
	c.Path = domain.ChildPath(newParent.Path, c.ID)

	return t.repo.RunInTx(ctx, func(repo repository.CategoryRepository) error {
		if err := repo.Update(ctx, c); err != nil {
			return err
		}
		if oldPath == c.Path {
			return nil
		}
		moved, err := repo.ReplacePathPrefix(ctx, oldPath, c.Path)
		if err != nil {
			return err
		}
		t.logger.Debug("Category subtree moved",
			zap.String("category_id", c.ID),
			zap.String("from", oldPath),
			zap.String("to", c.Path),
			zap.Int64("descendants", moved),
		)
		return nil
	})
}

// Detach deletes c and hands its children to c's parent, shortening every
// descendant path by one segment.
func (t *CategoryTree) Detach(ctx context.Context, c *domain.Category) error {
	if c.IsRoot() {
		return domain.NewError(domain.KindRootCategoryImmutable, c.ID)
	}
	parentPath := strings.TrimSuffix(c.Path, domain.PathSeparator+c.ID)

	return t.repo.RunInTx(ctx, func(repo repository.CategoryRepository) error {
		if _, err := repo.ReparentChildren(ctx, c.ID, c.Parent); err != nil {
			return err
		}
		if _, err := repo.ReplacePathPrefix(ctx, c.Path, parentPath); err != nil {
			return err
		}
		return repo.Delete(ctx, c.ID)
	})
}

// Children returns the direct children of id, or its whole subtree when
// recursive is set. Siblings are ordered by title.
func (t *CategoryTree) Children(ctx context.Context, id string, recursive bool) ([]*domain.CategoryNode, error) {
	parent, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var categories []*domain.Category
	if recursive {
		categories, err = t.repo.Descendants(ctx, parent.Path)
	} else {
		categories, err = t.repo.Children(ctx, parent.ID)
	}
	if err != nil {
		return nil, err
	}

	return buildTree(parent.ID, categories), nil
}

func buildTree(rootID string, categories []*domain.Category) []*domain.CategoryNode {
	nodes := make(map[string]*domain.CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &domain.CategoryNode{ID: c.ID, Title: c.Title, Slug: c.Slug, Children: []*domain.CategoryNode{}}
	}

	top := []*domain.CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if c.Parent == rootID {
			top = append(top, node)
			continue
		}
		if parent, ok := nodes[c.Parent]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	sortNodes(top)
	return top
}

func sortNodes(nodes []*domain.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Title < nodes[j].Title })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// AncestorClassifications returns the classification schemas of every
// ancestor of id, root first, followed by the category's own.
func (t *CategoryTree) AncestorClassifications(ctx context.Context, id string) ([]domain.Classification, error) {
	c, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.ClassificationsFor(ctx, c)
}

// ClassificationsFor is AncestorClassifications for an already loaded node.
func (t *CategoryTree) ClassificationsFor(ctx context.Context, c *domain.Category) ([]domain.Classification, error) {
	ancestors, err := t.repo.Ancestors(ctx, c.AncestorIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load ancestors of %s: %w", c.ID, err)
	}

	out := []domain.Classification{}
	for _, a := range ancestors {
		out = append(out, a.Classifications...)
	}
	return append(out, c.Classifications...), nil
}

// Paths maps each existing category among ids to its path.
func (t *CategoryTree) Paths(ctx context.Context, ids []string) (map[string]string, error) {
	categories, err := t.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load category paths: %w", err)
	}
	paths := make(map[string]string, len(categories))
	for _, c := range categories {
		paths[c.ID] = c.Path
	}
	return paths, nil
}

// List returns categories matching filter.
func (t *CategoryTree) List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, error) {
	return t.repo.List(ctx, filter)
}
