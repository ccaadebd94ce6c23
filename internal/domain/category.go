package domain

import (
	"strings"
	"time"
)

const (
	// RootCategoryID is the id of the sentinel root of the category tree.
	RootCategoryID = "ROOT"
	// PathSeparator joins ancestor ids in a materialized category path.
	PathSeparator = "."
)

// ClassificationType is the value type a classification requires.
type ClassificationType string

const (
	ClassificationString  ClassificationType = "STRING"
	ClassificationBoolean ClassificationType = "BOOLEAN"
	ClassificationNumber  ClassificationType = "NUMBER"
)

// Classification is an attribute schema declared on a category and inherited
// by every product assigned to the category or one of its descendants.
type Classification struct {
	ID          string             `json:"id" validate:"required"`
	Description string             `json:"description"`
	Mandatory   bool               `json:"mandatory"`
	Type        ClassificationType `json:"type" validate:"required,oneof=STRING BOOLEAN NUMBER"`
}

// Category is a node of the category tree.
type Category struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Slug            string           `json:"slug"`
	Parent          string           `json:"parent"`
	Path            string           `json:"path"`
	Classifications []Classification `json:"classifications"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// IsRoot reports whether c is the sentinel root.
func (c *Category) IsRoot() bool {
	return c.ID == RootCategoryID
}

// Level is the number of segments in the category path; the root is level 1.
func (c *Category) Level() int {
	if c.Path == "" {
		return 0
	}
	return strings.Count(c.Path, PathSeparator) + 1
}

// AncestorIDs returns the ids on the path above c, root first.
func (c *Category) AncestorIDs() []string {
	segments := strings.Split(c.Path, PathSeparator)
	if len(segments) <= 1 {
		return nil
	}
	return segments[:len(segments)-1]
}

// IsAncestorOf reports whether other lies strictly below c in the tree.
func (c *Category) IsAncestorOf(other *Category) bool {
	return strings.HasPrefix(other.Path, c.Path+PathSeparator)
}

// ChildPath returns the path of a node with the given id placed under parentPath.
func ChildPath(parentPath, id string) string {
	if parentPath == "" {
		return id
	}
	return parentPath + PathSeparator + id
}

// CategoryView is the client representation of a category.
type CategoryView struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Slug            string           `json:"slug"`
	Parent          string           `json:"parent,omitempty"`
	Path            string           `json:"path"`
	Level           int              `json:"level"`
	Classifications []Classification `json:"classifications"`
	Children        []*CategoryNode  `json:"children,omitempty"`
}

// ToClient strips storage fields and adds the level virtual.
func (c *Category) ToClient() *CategoryView {
	classifications := c.Classifications
	if classifications == nil {
		classifications = []Classification{}
	}
	return &CategoryView{
		ID:              c.ID,
		Title:           c.Title,
		Description:     c.Description,
		Slug:            c.Slug,
		Parent:          c.Parent,
		Path:            c.Path,
		Level:           c.Level(),
		Classifications: classifications,
	}
}

// CategoryNode is one entry of a children tree. Children is never nil so
// leaves serialize as an empty array.
type CategoryNode struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Slug     string          `json:"slug"`
	Children []*CategoryNode `json:"children"`
}
