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
)

func TestNormalizeClassifications(t *testing.T) {
	required := []domain.Classification{
		{ID: "color", Type: domain.ClassificationString, Mandatory: true},
		{ID: "weight", Type: domain.ClassificationNumber},
		{ID: "organic", Type: domain.ClassificationBoolean},
	}

	tests := []struct {
		name     string
		supplied []domain.ClassificationValue
		want     []domain.ClassificationValue
		wantKind domain.Kind
	}{
		{
			name:     "mandatory missing",
			supplied: []domain.ClassificationValue{{ID: "weight", Value: 1}},
			wantKind: domain.KindMissingClassification,
		},
		{
			name:     "mandatory empty",
			supplied: []domain.ClassificationValue{{ID: "color", Value: ""}},
			wantKind: domain.KindEmptyClassificationValue,
		},
		{
			name:     "mandatory nil",
			supplied: []domain.ClassificationValue{{ID: "color"}},
			wantKind: domain.KindEmptyClassificationValue,
		},
		{
			name: "number without value",
			supplied: []domain.ClassificationValue{
				{ID: "color", Value: "red"},
				{ID: "weight"},
			},
			wantKind: domain.KindClassificationNotANumber,
		},
		{
			name: "number from garbage",
			supplied: []domain.ClassificationValue{
				{ID: "color", Value: "red"},
				{ID: "weight", Value: "heavy"},
			},
			wantKind: domain.KindClassificationNotANumber,
		},
		{
			name: "boolean from string",
			supplied: []domain.ClassificationValue{
				{ID: "color", Value: "red"},
				{ID: "organic", Value: "true"},
			},
			wantKind: domain.KindClassificationNotABoolean,
		},
		{
			name: "coerces and drops unknown entries",
			supplied: []domain.ClassificationValue{
				{ID: "unknown", Value: "x"},
				{ID: "organic", Value: false},
				{ID: "weight", Value: " 2.5 "},
				{ID: "color", Value: 42},
			},
			want: []domain.ClassificationValue{
				{ID: "color", Value: "42"},
				{ID: "weight", Value: 2.5},
				{ID: "organic", Value: false},
			},
		},
		{
			name:     "optional entries may be absent",
			supplied: []domain.ClassificationValue{{ID: "color", Value: "red"}},
			want:     []domain.ClassificationValue{{ID: "color", Value: "red"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeClassifications(required, tt.supplied)
			if tt.wantKind != "" {
				kind, ok := domain.KindOf(err)
				require.True(t, ok, "expected a catalog error, got %v", err)
				assert.Equal(t, tt.wantKind, kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeClassifications_DuplicateRequirementsEnforcedEach(t *testing.T) {
	required := []domain.Classification{
		{ID: "size", Type: domain.ClassificationString},
		{ID: "size", Type: domain.ClassificationNumber},
	}

	got, err := NormalizeClassifications(required, []domain.ClassificationValue{{ID: "size", Value: "12"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.ClassificationValue{{ID: "size", Value: float64(12)}}, got)

	_, err = NormalizeClassifications(required, []domain.ClassificationValue{{ID: "size", Value: "XL"}})
	assert.ErrorIs(t, err, domain.ErrClassificationNotANumber)
}

func TestNormalizeClassifications_FalseAndZeroSatisfyMandatory(t *testing.T) {
	required := []domain.Classification{
		{ID: "flag", Type: domain.ClassificationBoolean, Mandatory: true},
		{ID: "count", Type: domain.ClassificationNumber, Mandatory: true},
	}

	got, err := NormalizeClassifications(required, []domain.ClassificationValue{
		{ID: "flag", Value: false},
		{ID: "count", Value: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.ClassificationValue{{ID: "flag", Value: false}, {ID: "count", Value: float64(0)}}, got)
}

func TestNormalizeClassifications_DoesNotMutateInput(t *testing.T) {
	supplied := []domain.ClassificationValue{{ID: "weight", Value: "3"}}
	_, err := NormalizeClassifications([]domain.Classification{{ID: "weight", Type: domain.ClassificationNumber}}, supplied)
	require.NoError(t, err)
	assert.Equal(t, "3", supplied[0].Value)
}

// Feature: catalog, Property 4: Omitting a mandatory classification always fails
func TestProperty_MandatoryClassificationRequired(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a mandatory id absent from the input fails with missing_classification", prop.ForAll(
		func(id string, others []string) bool {
			supplied := make([]domain.ClassificationValue, 0, len(others))
			for _, o := range others {
				if o != id {
					supplied = append(supplied, domain.ClassificationValue{ID: o, Value: "v"})
				}
			}
			required := []domain.Classification{{ID: id, Mandatory: true, Type: domain.ClassificationString}}

			_, err := NormalizeClassifications(required, supplied)
			kind, ok := domain.KindOf(err)
			return ok && kind == domain.KindMissingClassification
		},
		gen.Identifier(),
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("output only holds required ids", prop.ForAll(
		func(requiredIDs, suppliedIDs []string) bool {
			required := make([]domain.Classification, 0, len(requiredIDs))
			allowed := map[string]bool{}
			for _, id := range requiredIDs {
				required = append(required, domain.Classification{ID: id, Type: domain.ClassificationString})
				allowed[id] = true
			}
			supplied := make([]domain.ClassificationValue, 0, len(suppliedIDs))
			for _, id := range suppliedIDs {
				supplied = append(supplied, domain.ClassificationValue{ID: id, Value: id})
			}

			out, err := NormalizeClassifications(required, supplied)
			if err != nil {
				return false
			}
			seen := map[string]bool{}
			for _, v := range out {
				if !allowed[v.ID] || seen[v.ID] {
					return false
				}
				seen[v.ID] = true
			}
			return true
		},
		gen.SliceOf(gen.OneConstOf("a", "b", "c", "d")),
		gen.SliceOf(gen.OneConstOf("a", "b", "c", "x", "y")),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestClassificationResolver_InheritsFromAncestors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.categorySvc.Create(ctx, CategoryInput{
		Title:           "Shoes",
		Classifications: []domain.Classification{{ID: "size", Type: domain.ClassificationNumber, Mandatory: true}},
	})
	require.NoError(t, err)
	child, err := f.categorySvc.Create(ctx, CategoryInput{Title: "Boots", Parent: parent.ID})
	require.NoError(t, err)

	resolver := NewClassificationResolver(f.tree)

	_, err = resolver.Resolve(ctx, []string{child.ID}, nil)
	assert.ErrorIs(t, err, domain.ErrMissingClassification)

	got, err := resolver.Resolve(ctx, []string{child.ID}, []domain.ClassificationValue{{ID: "size", Value: "44"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.ClassificationValue{{ID: "size", Value: float64(44)}}, got)

	_, err = resolver.Resolve(ctx, []string{"missing"}, nil)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
}
