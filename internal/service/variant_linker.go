package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"
)

// Composition is the outcome of classifying a create or update input.
type Composition struct {
	Type domain.ProductType
	// Variations holds the variant's values ordered by its base's modifiers.
	// It is nil unless variations were supplied.
	Variations []domain.Variation
}

// RepairReport summarizes a full reconciliation pass.
type RepairReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Orphans  int `json:"orphans"`
}

// VariantLinker enforces the base/variant structural rules and keeps each
// base's variants list in step with its variants' base links.
type VariantLinker struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewVariantLinker(products repository.ProductRepository, logger *zap.Logger) *VariantLinker {
	return &VariantLinker{products: products, logger: logger}
}

func (in *ProductInput) hasBaseFields() bool {
	return in.Modifiers != nil || in.Variants != nil
}

func (in *ProductInput) baseID() string {
	if in.Base == nil {
		return ""
	}
	return *in.Base
}

func (in *ProductInput) hasVariantFields() bool {
	return in.baseID() != "" || in.Variations != nil
}

// Classify checks the composition fields of in against old, the stored
// product for an update or nil for a create, and derives the product type.
func (l *VariantLinker) Classify(ctx context.Context, in *ProductInput, old *domain.Product) (*Composition, error) {
	if in.hasBaseFields() && in.hasVariantFields() {
		return nil, domain.NewError(domain.KindInconsistentBaseVariantsData, nil)
	}
	if old != nil {
		if (in.hasBaseFields() && old.HasVariantGroup()) || (in.hasVariantFields() && old.HasBaseGroup()) {
			return nil, domain.NewError(domain.KindInconsistentBaseVariantsData, old.ID)
		}
	}

	comp := &Composition{Type: deriveType(in, old)}

	switch {
	case in.hasVariantFields():
		if in.baseID() == "" || in.Variations == nil {
			return nil, domain.NewError(domain.KindInconsistentBaseVariationsData, nil)
		}
		variations, err := l.checkVariant(ctx, in)
		if err != nil {
			return nil, err
		}
		comp.Variations = variations

	case in.Modifiers != nil:
		if len(in.Modifiers) == 0 {
			return nil, domain.ErrNoModifiersFound
		}
		if old != nil {
			if err := l.checkExistingVariants(ctx, old.Variants, in.Modifiers); err != nil {
				return nil, err
			}
		}
	}

	return comp, nil
}

func deriveType(in *ProductInput, old *domain.Product) domain.ProductType {
	switch {
	case in.baseID() != "" || (old != nil && old.Base != ""):
		return domain.ProductTypeVariant
	case len(in.Modifiers) > 0 || (in.Modifiers == nil && old != nil && len(old.Modifiers) > 0):
		return domain.ProductTypeBase
	default:
		return domain.ProductTypeSimple
	}
}

// checkVariant loads the referenced base and returns the supplied variations
// filtered to the base's modifier axes, in modifier order.
func (l *VariantLinker) checkVariant(ctx context.Context, in *ProductInput) ([]domain.Variation, error) {
	baseID := in.baseID()
	if baseID == in.ID {
		return nil, domain.NewError(domain.KindBaseProductNotFound, baseID)
	}

	base, err := l.products.FindByID(ctx, baseID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.NewError(domain.KindBaseProductNotFound, baseID)
		}
		return nil, fmt.Errorf("failed to load base product: %w", err)
	}
	if base.Type != domain.ProductTypeBase {
		return nil, domain.NewError(domain.KindBaseProductNotFound, baseID)
	}

	filtered := make([]domain.Variation, 0, len(base.Modifiers))
	for _, modifier := range base.Modifiers {
		v, ok := findVariation(in.Variations, modifier)
		if !ok {
			return nil, domain.NewError(domain.KindVariationDataNotFound, modifier)
		}
		filtered = append(filtered, v)
	}
	return filtered, nil
}

// checkExistingVariants makes sure every current variant of a base carries a
// value for each of its new modifiers.
func (l *VariantLinker) checkExistingVariants(ctx context.Context, variantIDs, modifiers []string) error {
	for _, id := range variantIDs {
		variant, err := l.products.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return domain.NewError(domain.KindVariantNotFound, id)
			}
			return fmt.Errorf("failed to load variant: %w", err)
		}
		for _, modifier := range modifiers {
			if _, ok := findVariation(variant.Variations, modifier); !ok {
				return domain.NewError(domain.KindVariationDataNotFound, modifier)
			}
		}
	}
	return nil
}

// findVariation returns the first non-empty variation for axis.
func findVariation(variations []domain.Variation, axis string) (domain.Variation, bool) {
	for _, v := range variations {
		if v.ID == axis {
			return v, v.Value != ""
		}
	}
	return domain.Variation{}, false
}

// RepairLinks makes saved the only product whose variants list names it, and
// adds it to its base when it has one. It is idempotent.
func (l *VariantLinker) RepairLinks(ctx context.Context, saved *domain.Product) error {
	if saved.Base != "" {
		if err := l.products.AddVariant(ctx, saved.Base, saved.ID); err != nil {
			return err
		}
	}
	pulled, err := l.products.PullVariantFromOthers(ctx, saved.ID, saved.Base)
	if err != nil {
		return err
	}
	if pulled > 0 {
		l.logger.Debug("Stale variant links removed", zap.String("product_id", saved.ID), zap.Int64("count", pulled))
	}
	return nil
}

// Unlink removes a deleted variant from its base.
func (l *VariantLinker) Unlink(ctx context.Context, removed *domain.Product) error {
	if removed.Base == "" {
		return nil
	}
	return l.products.PullVariant(ctx, removed.Base, removed.ID)
}

// RepairAll rebuilds every base's variants list from the variants' own base
// links, dropping ids of missing or foreign products.
func (l *VariantLinker) RepairAll(ctx context.Context) (*RepairReport, error) {
	products, err := l.products.ListComposed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list composed products: %w", err)
	}

	byID := make(map[string]*domain.Product, len(products))
	expected := make(map[string][]string)
	for _, p := range products {
		byID[p.ID] = p
	}

	report := &RepairReport{}
	for _, p := range products {
		if p.Base == "" {
			continue
		}
		if base, ok := byID[p.Base]; !ok || base.Type != domain.ProductTypeBase {
			report.Orphans++
			l.logger.Warn("Variant references a missing base", zap.String("product_id", p.ID), zap.String("base_id", p.Base))
			continue
		}
		expected[p.Base] = append(expected[p.Base], p.ID)
	}

	for _, p := range products {
		if p.Type != domain.ProductTypeBase {
			continue
		}
		report.Checked++

		want := reconcileVariants(p.Variants, expected[p.ID])
		if equalStrings(want, p.Variants) {
			continue
		}
		if err := l.products.SetVariants(ctx, p.ID, want); err != nil {
			return report, fmt.Errorf("failed to repair variants of %s: %w", p.ID, err)
		}
		report.Repaired++
		l.logger.Info("Variant links repaired", zap.String("product_id", p.ID), zap.Strings("variants", want))
	}

	return report, nil
}

// reconcileVariants keeps the current order of still-valid ids and appends
// valid ids that were missing.
func reconcileVariants(current, valid []string) []string {
	allowed := make(map[string]bool, len(valid))
	for _, id := range valid {
		allowed[id] = true
	}

	out := []string{}
	seen := map[string]bool{}
	for _, id := range current {
		if allowed[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range valid {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
