package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"catalog-service/internal/domain"
)

// ClassificationResolver checks a product's classification values against
// the schemas its categories inherit.
type ClassificationResolver struct {
	tree *CategoryTree
}

func NewClassificationResolver(tree *CategoryTree) *ClassificationResolver {
	return &ClassificationResolver{tree: tree}
}

// Resolve loads the given categories and normalizes supplied against their
// inherited requirements.
func (r *ClassificationResolver) Resolve(ctx context.Context, categoryIDs []string, supplied []domain.ClassificationValue) ([]domain.ClassificationValue, error) {
	categories := make([]*domain.Category, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		c, err := r.tree.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return r.ResolveFor(ctx, categories, supplied)
}

// ResolveFor is Resolve for already loaded categories.
func (r *ClassificationResolver) ResolveFor(ctx context.Context, categories []*domain.Category, supplied []domain.ClassificationValue) ([]domain.ClassificationValue, error) {
	required, err := r.Requirements(ctx, categories)
	if err != nil {
		return nil, err
	}
	return NormalizeClassifications(required, supplied)
}

// Requirements concatenates the inherited schemas of every category in order.
// Duplicate ids are kept.
func (r *ClassificationResolver) Requirements(ctx context.Context, categories []*domain.Category) ([]domain.Classification, error) {
	required := []domain.Classification{}
	for _, c := range categories {
		schemas, err := r.tree.ClassificationsFor(ctx, c)
		if err != nil {
			return nil, err
		}
		required = append(required, schemas...)
	}
	return required, nil
}

// NormalizeClassifications validates and coerces supplied against required.
// The result holds one entry per matched id in first-match order; supplied
// entries no requirement names are dropped.
func NormalizeClassifications(required []domain.Classification, supplied []domain.ClassificationValue) ([]domain.ClassificationValue, error) {
	working := make([]domain.ClassificationValue, len(supplied))
	copy(working, supplied)

	out := []domain.ClassificationValue{}
	emitted := map[string]int{}

	for _, req := range required {
		idx := indexOfClassification(working, req.ID)
		if idx < 0 {
			if req.Mandatory {
				return nil, domain.NewError(domain.KindMissingClassification, req.ID)
			}
			continue
		}

		value := working[idx].Value
		if isEmptyClassificationValue(value) && req.Mandatory {
			return nil, domain.NewError(domain.KindEmptyClassificationValue, req.ID)
		}

		coerced, err := coerceClassification(req, value)
		if err != nil {
			return nil, err
		}
		working[idx].Value = coerced

		if pos, ok := emitted[req.ID]; ok {
			out[pos].Value = coerced
			continue
		}
		emitted[req.ID] = len(out)
		out = append(out, domain.ClassificationValue{ID: req.ID, Value: coerced})
	}

	return out, nil
}

func indexOfClassification(values []domain.ClassificationValue, id string) int {
	for i, v := range values {
		if v.ID == id {
			return i
		}
	}
	return -1
}

// isEmptyClassificationValue treats only a missing value or the empty string
// as empty; false and 0 are legitimate values, even for a mandatory
// classification.
func isEmptyClassificationValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func coerceClassification(req domain.Classification, value any) (any, error) {
	switch req.Type {
	case domain.ClassificationString:
		s, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Sprint(value), nil
		}
		return s, nil

	case domain.ClassificationNumber:
		if value == nil {
			return nil, domain.NewError(domain.KindClassificationNotANumber, req.ID)
		}
		if s, ok := value.(string); ok {
			if s = strings.TrimSpace(s); s == "" {
				return float64(0), nil
			}
			value = s
		}
		f, err := cast.ToFloat64E(value)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, domain.NewError(domain.KindClassificationNotANumber, req.ID)
		}
		return f, nil

	case domain.ClassificationBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, domain.NewError(domain.KindClassificationNotABoolean, req.ID)
		}
		return b, nil

	default:
		return value, nil
	}
}
