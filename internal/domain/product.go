package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusDraft  ProductStatus = "DRAFT"
	ProductStatusOnline ProductStatus = "ONLINE"
)

type ProductType string

const (
	ProductTypeSimple  ProductType = "SIMPLE"
	ProductTypeBase    ProductType = "BASE"
	ProductTypeVariant ProductType = "VARIANT"
)

type StockStatus string

const (
	StockStatusNormal       StockStatus = "NORMAL"
	StockStatusUnlimited    StockStatus = "UNLIMITED"
	StockStatusDiscontinued StockStatus = "DISCONTINUED"
)

// DefaultTaxCode is assigned to products created without a tax code.
const DefaultTaxCode = "default"

// Price is a validated price entry. ValidFrom and ValidUntil are either both
// set or both nil.
type Price struct {
	ID           string          `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Country      string          `json:"country,omitempty"`
	CustomerType string          `json:"customerType,omitempty"`
	Channel      string          `json:"channel,omitempty"`
	ValidFrom    *time.Time      `json:"validFrom,omitempty"`
	ValidUntil   *time.Time      `json:"validUntil,omitempty"`
}

// ClassificationValue is a product's value for a category classification.
type ClassificationValue struct {
	ID    string `json:"id" validate:"required"`
	Value any    `json:"value"`
}

// Variation is a variant's value along one of its base's modifier axes.
type Variation struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value"`
}

type Media struct {
	ID  string `json:"id"`
	URL string `json:"url" validate:"omitempty,url"`
}

// Product is a sellable item. A product belongs to at most one of the
// base group (Modifiers, Variants) and the variant group (Base, Variations).
type Product struct {
	ID              string                `json:"id"`
	SKU             string                `json:"sku"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Brand           string                `json:"brand"`
	Status          ProductStatus         `json:"status"`
	Type            ProductType           `json:"type"`
	TaxCode         string                `json:"taxCode"`
	StockStatus     StockStatus           `json:"stockStatus"`
	IsNetPrice      bool                  `json:"isNetPrice"`
	Categories      []string              `json:"categories"`
	Prices          []Price               `json:"prices"`
	Classifications []ClassificationValue `json:"classifications"`
	Medias          []Media               `json:"medias"`
	Base            string                `json:"base,omitempty"`
	Variations      []Variation           `json:"variations"`
	Modifiers       []string              `json:"modifiers"`
	Variants        []string              `json:"variants"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// HasBaseGroup reports whether p carries base-side composition fields.
func (p *Product) HasBaseGroup() bool {
	return len(p.Modifiers) > 0 || len(p.Variants) > 0
}

// HasVariantGroup reports whether p carries variant-side composition fields.
func (p *Product) HasVariantGroup() bool {
	return p.Base != "" || len(p.Variations) > 0
}

// DeriveType computes the product type from its composition fields.
func (p *Product) DeriveType() ProductType {
	switch {
	case p.Base != "":
		return ProductTypeVariant
	case len(p.Modifiers) > 0:
		return ProductTypeBase
	default:
		return ProductTypeSimple
	}
}

// ProductView is the client representation of a product.
type ProductView struct {
	ID              string                `json:"id"`
	SKU             string                `json:"sku"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Brand           string                `json:"brand"`
	Status          ProductStatus         `json:"status"`
	Type            ProductType           `json:"type"`
	TaxCode         string                `json:"taxCode"`
	StockStatus     StockStatus           `json:"stockStatus"`
	IsNetPrice      bool                  `json:"isNetPrice"`
	Categories      []string              `json:"categories"`
	Prices          []Price               `json:"prices"`
	Classifications []ClassificationValue `json:"classifications,omitempty"`
	Medias          []Media               `json:"medias"`
	Base            string                `json:"base,omitempty"`
	Variations      []Variation           `json:"variations,omitempty"`
	Modifiers       []string              `json:"modifiers,omitempty"`
	Variants        []string              `json:"variants,omitempty"`
}

// ToClient strips storage fields. Composition fields that do not apply to
// the product's type are left out.
func (p *Product) ToClient() *ProductView {
	v := &ProductView{
		ID:              p.ID,
		SKU:             p.SKU,
		Title:           p.Title,
		Description:     p.Description,
		Brand:           p.Brand,
		Status:          p.Status,
		Type:            p.Type,
		TaxCode:         p.TaxCode,
		StockStatus:     p.StockStatus,
		IsNetPrice:      p.IsNetPrice,
		Categories:      nonNil(p.Categories),
		Prices:          nonNil(p.Prices),
		Classifications: p.Classifications,
		Medias:          nonNil(p.Medias),
	}
	switch p.Type {
	case ProductTypeBase:
		v.Modifiers = p.Modifiers
		v.Variants = nonNil(p.Variants)
	case ProductTypeVariant:
		v.Base = p.Base
		v.Variations = p.Variations
	}
	return v
}

// ProductPatch is the allow-listed set of product fields an update may
// change. Nil fields are left untouched; Type is always written.
type ProductPatch struct {
	SKU             *string
	Title           *string
	Description     *string
	Brand           *string
	Status          *ProductStatus
	TaxCode         *string
	StockStatus     *StockStatus
	IsNetPrice      *bool
	Categories      []string
	Prices          []Price
	Classifications []ClassificationValue
	Medias          []Media
	Base            *string
	Variations      []Variation
	Modifiers       []string
	Type            ProductType
}

// Apply copies the patched fields onto p.
func (pp *ProductPatch) Apply(p *Product) {
	if pp.SKU != nil {
		p.SKU = *pp.SKU
	}
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Brand != nil {
		p.Brand = *pp.Brand
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.TaxCode != nil {
		p.TaxCode = *pp.TaxCode
	}
	if pp.StockStatus != nil {
		p.StockStatus = *pp.StockStatus
	}
	if pp.IsNetPrice != nil {
		p.IsNetPrice = *pp.IsNetPrice
	}
	if pp.Categories != nil {
		p.Categories = pp.Categories
	}
	if pp.Prices != nil {
		p.Prices = pp.Prices
	}
	if pp.Classifications != nil {
		p.Classifications = pp.Classifications
	}
	if pp.Medias != nil {
		p.Medias = pp.Medias
	}
	if pp.Base != nil {
		p.Base = *pp.Base
	}
	if pp.Variations != nil {
		p.Variations = pp.Variations
	}
	if pp.Modifiers != nil {
		p.Modifiers = pp.Modifiers
	}
	if pp.Type != "" {
		p.Type = pp.Type
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
