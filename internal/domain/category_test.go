package domain

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Feature: catalog, Property 1: A category's level equals the number of ids on its path
func TestProperty_LevelMatchesPathDepth(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("level grows by one for every child step", prop.ForAll(
		func(ids []string) bool {
			path := RootCategoryID
			for i, id := range ids {
				path = ChildPath(path, id)
				c := &Category{ID: id, Path: path}
				if c.Level() != i+2 {
					return false
				}
				if len(c.AncestorIDs()) != i+1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: catalog, Property 2: Ancestry is decided by path prefix
func TestProperty_AncestryByPathPrefix(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a node is an ancestor of every node built below it and of no sibling", prop.ForAll(
		func(parent, child, sibling string) bool {
			p := &Category{ID: parent, Path: ChildPath(RootCategoryID, parent)}
			c := &Category{ID: child, Path: ChildPath(p.Path, child)}
			s := &Category{ID: parent + sibling, Path: ChildPath(RootCategoryID, parent+sibling)}
			return p.IsAncestorOf(c) && !c.IsAncestorOf(p) && !p.IsAncestorOf(p) && !p.IsAncestorOf(s)
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCategory_RootShape(t *testing.T) {
	root := &Category{ID: RootCategoryID, Path: RootCategoryID}

	assert.True(t, root.IsRoot())
	assert.Equal(t, 1, root.Level())
	assert.Empty(t, root.AncestorIDs())
	assert.Equal(t, "ROOT.shoes", ChildPath(root.Path, "shoes"))
}

func TestCategory_ToClient(t *testing.T) {
	c := &Category{ID: "b", Title: "B", Slug: "b", Parent: "a", Path: "ROOT.a.b"}

	view := c.ToClient()

	assert.Equal(t, 3, view.Level)
	assert.NotNil(t, view.Classifications)
	assert.Nil(t, view.Children)
	assert.True(t, strings.HasSuffix(view.Path, ".b"))
}
