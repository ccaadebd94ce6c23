package service

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"
)

func TestCategoryTree_EnsureRootIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.tree.EnsureRoot(ctx)
	require.NoError(t, err)
	second, err := f.tree.EnsureRoot(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.RootCategoryID, first.ID)
	assert.Equal(t, domain.RootCategoryID, first.Path)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, first.Level())

	all, err := f.categories.FindByIDs(ctx, []string{domain.RootCategoryID})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCategoryTree_GetMaterializesRoot(t *testing.T) {
	f := newFixture(t)

	root, err := f.tree.Get(context.Background(), domain.RootCategoryID)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
}

func TestCategoryService_CreateUnderRoot(t *testing.T) {
	f := newFixture(t)

	c, err := f.categorySvc.Create(context.Background(), CategoryInput{
		Title:  "Category 01",
		Slug:   "category01",
		Parent: domain.RootCategoryID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RootCategoryID, c.Parent)
	assert.Equal(t, "ROOT."+c.ID, c.Path)
	assert.Equal(t, 2, c.ToClient().Level)
	assert.Equal(t, "category01", c.Slug)
}

func TestCategoryService_CreateDefaultsParentAndSlug(t *testing.T) {
	f := newFixture(t)

	c, err := f.categorySvc.Create(context.Background(), CategoryInput{Title: "Summer Shoes"})
	require.NoError(t, err)

	assert.Equal(t, domain.RootCategoryID, c.Parent)
	assert.Equal(t, "summer-shoes", c.Slug)
}

func TestCategoryService_CreateWithUnknownParent(t *testing.T) {
	f := newFixture(t)

	_, err := f.categorySvc.Create(context.Background(), CategoryInput{Title: "Orphan", Parent: "missing"})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestCategoryService_SlugUniqueAmongSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.categorySvc.Create(ctx, CategoryInput{Title: "A", Slug: "same"})
	require.NoError(t, err)

	_, err = f.categorySvc.Create(ctx, CategoryInput{Title: "B", Slug: "same"})
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	// the same slug under another parent is fine
	_, err = f.categorySvc.Create(ctx, CategoryInput{Title: "C", Slug: "same", Parent: a.ID})
	assert.NoError(t, err)
}

// Feature: catalog, Property 3: Created categories extend their parent's path by their own id
func TestProperty_CreatedCategoryPath(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("path is parent path plus id and level counts segments", prop.ForAll(
		func(titles []string) bool {
			f := newFixture(t)
			ctx := context.Background()

			parent, err := f.tree.EnsureRoot(ctx)
			if err != nil {
				return false
			}
			for _, title := range titles {
				c, err := f.categorySvc.Create(ctx, CategoryInput{Title: title, Parent: parent.ID})
				if err != nil {
					return false
				}
				if c.Path != parent.Path+"."+c.ID || c.Level() != parent.Level()+1 {
					return false
				}
				parent = c
			}
			return true
		},
		gen.SliceOfN(5, gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// chain creates a -> b -> c below the root.
func chain(t *testing.T, f *fixture) (a, b, c *domain.Category) {
	t.Helper()
	ctx := context.Background()

	var err error
	a, err = f.categorySvc.Create(ctx, CategoryInput{Title: "A"})
	require.NoError(t, err)
	b, err = f.categorySvc.Create(ctx, CategoryInput{Title: "B", Parent: a.ID})
	require.NoError(t, err)
	c, err = f.categorySvc.Create(ctx, CategoryInput{Title: "C", Parent: b.ID})
	require.NoError(t, err)
	return a, b, c
}

func TestCategoryService_UpdateMovesSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, b, c := chain(t, f)

	d, err := f.categorySvc.Create(ctx, CategoryInput{Title: "D"})
	require.NoError(t, err)

	moved, err := f.categorySvc.Update(ctx, b.ID, CategoryPatch{Parent: ptr(d.ID)})
	require.NoError(t, err)
	assert.Equal(t, d.ID, moved.Parent)
	assert.Equal(t, d.Path+"."+b.ID, moved.Path)

	reloaded, err := f.categorySvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Path+"."+b.ID+"."+c.ID, reloaded.Path)
	assert.Equal(t, 4, reloaded.Level())
}

func TestCategoryService_UpdateRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _, c := chain(t, f)

	_, err := f.categorySvc.Update(ctx, a.ID, CategoryPatch{Parent: ptr(c.ID)})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	_, err = f.categorySvc.Update(ctx, a.ID, CategoryPatch{Parent: ptr(a.ID)})
	assert.ErrorIs(t, err, domain.ErrInvalidParent)

	unchanged, err := f.categorySvc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "ROOT."+a.ID, unchanged.Path)
}

func TestCategoryService_UpdateFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _, _ := chain(t, f)

	updated, err := f.categorySvc.Update(ctx, a.ID, CategoryPatch{
		Title:       ptr("Renamed"),
		Description: ptr(""),
		Parent:      ptr(""),
		Classifications: []domain.Classification{
			{ID: "size", Type: domain.ClassificationNumber, Mandatory: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "a", updated.Slug)
	assert.Equal(t, domain.RootCategoryID, updated.Parent)
	assert.Len(t, updated.Classifications, 1)
}

func TestCategoryService_UpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _, _ := chain(t, f)

	_, err := f.categorySvc.Update(ctx, "missing", CategoryPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)

	_, err = f.categorySvc.Update(ctx, a.ID, CategoryPatch{Parent: ptr("missing")})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)

	_, err = f.categorySvc.Update(ctx, domain.RootCategoryID, CategoryPatch{Parent: ptr(a.ID)})
	assert.ErrorIs(t, err, domain.ErrRootCategoryImmutable)
}

func TestCategoryService_RemoveReparentsChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := chain(t, f)

	require.NoError(t, f.categorySvc.Remove(ctx, a.ID))

	_, err := f.categorySvc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)

	child, err := f.categorySvc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RootCategoryID, child.Parent)
	assert.Equal(t, "ROOT."+b.ID, child.Path)
	assert.Equal(t, 2, child.Level())

	grandchild, err := f.categorySvc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, grandchild.Parent)
	assert.Equal(t, "ROOT."+b.ID+"."+c.ID, grandchild.Path)
}

func TestCategoryService_RemoveKeepsSiblingSlugsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.categorySvc.Create(ctx, CategoryInput{Title: "Shoes", Slug: "shoes"})
	require.NoError(t, err)
	a, err := f.categorySvc.Create(ctx, CategoryInput{Title: "Apparel"})
	require.NoError(t, err)
	nested, err := f.categorySvc.Create(ctx, CategoryInput{Title: "Shoes", Slug: "shoes", Parent: a.ID})
	require.NoError(t, err)

	err = f.categorySvc.Remove(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	// the failed removal left the tree untouched
	_, err = f.categorySvc.Get(ctx, a.ID)
	require.NoError(t, err)
	child, err := f.categorySvc.Get(ctx, nested.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, child.Parent)
	assert.Equal(t, a.Path+"."+nested.ID, child.Path)

	shoes, err := f.categorySvc.List(ctx, repository.CategoryFilter{Parents: []string{domain.RootCategoryID}, Slugs: []string{"shoes"}})
	require.NoError(t, err)
	assert.Len(t, shoes, 1)
}

func TestCategoryService_RemoveRefusedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, _, _ := chain(t, f)

	_, err := f.productSvc.Create(ctx, ProductInput{SKU: ptr("sku-1"), Title: ptr("P"), Categories: []string{a.ID}})
	require.NoError(t, err)

	err = f.categorySvc.Remove(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrCategoryNotEmpty)

	_, err = f.categorySvc.Get(ctx, a.ID)
	assert.NoError(t, err)
}

func TestCategoryService_RemoveErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.categorySvc.Remove(ctx, "missing"), domain.ErrCategoryNotFound)
	assert.ErrorIs(t, f.categorySvc.Remove(ctx, domain.RootCategoryID), domain.ErrRootCategoryImmutable)
}

func TestCategoryTree_Children(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := chain(t, f)

	other, err := f.categorySvc.Create(ctx, CategoryInput{Title: "Another", Parent: a.ID})
	require.NoError(t, err)

	direct, err := f.categorySvc.Children(ctx, a.ID, false)
	require.NoError(t, err)
	require.Len(t, direct, 2)
	assert.Equal(t, other.ID, direct[0].ID)
	assert.Equal(t, b.ID, direct[1].ID)
	assert.NotNil(t, direct[1].Children)
	assert.Empty(t, direct[1].Children)

	nested, err := f.categorySvc.Children(ctx, a.ID, true)
	require.NoError(t, err)
	require.Len(t, nested, 2)
	require.Len(t, nested[1].Children, 1)
	assert.Equal(t, c.ID, nested[1].Children[0].ID)
	assert.NotNil(t, nested[1].Children[0].Children)

	leaf, err := f.categorySvc.Children(ctx, c.ID, true)
	require.NoError(t, err)
	assert.NotNil(t, leaf)
	assert.Empty(t, leaf)

	_, err = f.categorySvc.Children(ctx, "missing", false)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestCategoryTree_AncestorClassifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.categorySvc.Update(ctx, domain.RootCategoryID, CategoryPatch{
		Classifications: []domain.Classification{{ID: "brand", Type: domain.ClassificationString}},
	})
	require.NoError(t, err)

	a, err := f.categorySvc.Create(ctx, CategoryInput{
		Title:           "A",
		Classifications: []domain.Classification{{ID: "size", Type: domain.ClassificationNumber}},
	})
	require.NoError(t, err)
	b, err := f.categorySvc.Create(ctx, CategoryInput{
		Title:           "B",
		Parent:          a.ID,
		Classifications: []domain.Classification{{ID: "organic", Type: domain.ClassificationBoolean}},
	})
	require.NoError(t, err)

	schemas, err := f.tree.AncestorClassifications(ctx, b.ID)
	require.NoError(t, err)

	ids := make([]string, 0, len(schemas))
	for _, s := range schemas {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"brand", "size", "organic"}, ids)
}

func TestCategoryTree_Paths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, _ := chain(t, f)

	paths, err := f.tree.Paths(ctx, []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{a.ID: a.Path, b.ID: b.Path}, paths)
}
