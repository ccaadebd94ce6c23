package domain

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-facing code of a catalog error.
type Kind string

const (
	KindParentNotFound                 Kind = "parent_category_not_found"
	KindCategoryNotFound               Kind = "category_not_found"
	KindCategoryNotEmpty               Kind = "category_not_empty"
	KindInvalidParent                  Kind = "invalid_parent_category"
	KindRootCategoryImmutable          Kind = "root_category_immutable"
	KindProductNotFound                Kind = "product_not_found"
	KindProductNotSaved                Kind = "product_not_saved"
	KindBaseProductNotFound            Kind = "base_product_not_found"
	KindVariantNotFound                Kind = "variant_not_found"
	KindVariationDataNotFound          Kind = "variation_data_not_found"
	KindNoModifiersFound               Kind = "no_modifiers_found"
	KindInconsistentBaseVariantsData   Kind = "inconsistent_base_variants_data"
	KindInconsistentBaseVariationsData Kind = "inconsistent_base_variations_data"
	KindMaxCategoriesPerProduct        Kind = "max_categories_per_product_reached"
	KindMissingClassification          Kind = "missing_classification"
	KindEmptyClassificationValue       Kind = "empty_classification_value"
	KindClassificationNotABoolean      Kind = "classification_value_not_a_boolean"
	KindClassificationNotANumber       Kind = "classification_value_not_a_number"
	KindPriceInvalid                   Kind = "price_invalid"
	KindPriceCurrencyInvalid           Kind = "price_currency_invalid"
	KindPriceCountryInvalid            Kind = "price_country_invalid"
	KindPriceValidDates                Kind = "price_valid_dates"
	KindDuplicateKey                   Kind = "duplicate_key"
)

// Error is a catalog rule violation. Data carries the offending value, if any.
type Error struct {
	Kind Kind
	Data any
}

func (e *Error) Error() string {
	if e.Data == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Data)
}

// Is matches any *Error with the same Kind, so sentinels work with errors.Is
// regardless of the attached data.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds an error of the given kind carrying data.
func NewError(kind Kind, data any) *Error {
	return &Error{Kind: kind, Data: data}
}

var (
	ErrParentNotFound                 = &Error{Kind: KindParentNotFound}
	ErrCategoryNotFound               = &Error{Kind: KindCategoryNotFound}
	ErrCategoryNotEmpty               = &Error{Kind: KindCategoryNotEmpty}
	ErrInvalidParent                  = &Error{Kind: KindInvalidParent}
	ErrRootCategoryImmutable          = &Error{Kind: KindRootCategoryImmutable}
	ErrProductNotFound                = &Error{Kind: KindProductNotFound}
	ErrProductNotSaved                = &Error{Kind: KindProductNotSaved}
	ErrBaseProductNotFound            = &Error{Kind: KindBaseProductNotFound}
	ErrVariantNotFound                = &Error{Kind: KindVariantNotFound}
	ErrVariationDataNotFound          = &Error{Kind: KindVariationDataNotFound}
	ErrNoModifiersFound               = &Error{Kind: KindNoModifiersFound}
	ErrInconsistentBaseVariantsData   = &Error{Kind: KindInconsistentBaseVariantsData}
	ErrInconsistentBaseVariationsData = &Error{Kind: KindInconsistentBaseVariationsData}
	ErrMaxCategoriesPerProduct        = &Error{Kind: KindMaxCategoriesPerProduct}
	ErrMissingClassification          = &Error{Kind: KindMissingClassification}
	ErrEmptyClassificationValue       = &Error{Kind: KindEmptyClassificationValue}
	ErrClassificationNotABoolean      = &Error{Kind: KindClassificationNotABoolean}
	ErrClassificationNotANumber       = &Error{Kind: KindClassificationNotANumber}
	ErrPriceInvalid                   = &Error{Kind: KindPriceInvalid}
	ErrPriceCurrencyInvalid           = &Error{Kind: KindPriceCurrencyInvalid}
	ErrPriceCountryInvalid            = &Error{Kind: KindPriceCountryInvalid}
	ErrPriceValidDates                = &Error{Kind: KindPriceValidDates}
	ErrDuplicateKey                   = &Error{Kind: KindDuplicateKey}
)

// KindOf reports the Kind of err when it is (or wraps) a catalog error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
