package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"catalog-service/internal/domain"
)

// PriceInput is a price entry as supplied by a client. Dates are kept as
// strings so malformed values can be reported rather than rejected at decode.
type PriceInput struct {
	ID           string           `json:"id"`
	Amount       *decimal.Decimal `json:"amount"`
	Currency     string           `json:"currency"`
	Country      string           `json:"country"`
	CustomerType string           `json:"customerType"`
	Channel      string           `json:"channel"`
	ValidFrom    *string          `json:"validFrom"`
	ValidUntil   *string          `json:"validUntil"`
}

// DateRange is the data attached to a price_valid_dates error.
type DateRange struct {
	ValidFrom  *string `json:"validFrom,omitempty"`
	ValidUntil *string `json:"validUntil,omitempty"`
}

// isoLayouts are the accepted ISO-8601 forms, most specific first. Layouts
// without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// PriceValidator checks price entries one by one.
type PriceValidator struct {
	validate *validator.Validate
}

func NewPriceValidator() *PriceValidator {
	return &PriceValidator{validate: validator.New()}
}

// Validate checks every entry and returns the normalized prices. Entries
// without an id get a generated one.
func (v *PriceValidator) Validate(prices []PriceInput) ([]domain.Price, error) {
	out := make([]domain.Price, 0, len(prices))
	for _, in := range prices {
		p, err := v.validateOne(in)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (v *PriceValidator) validateOne(in PriceInput) (domain.Price, error) {
	if in.Amount == nil || !in.Amount.IsPositive() || !storableAmount(*in.Amount) {
		return domain.Price{}, domain.NewError(domain.KindPriceInvalid, in.Amount)
	}
	if err := v.validate.Var(in.Currency, "required,iso4217"); err != nil {
		return domain.Price{}, domain.NewError(domain.KindPriceCurrencyInvalid, in.Currency)
	}
	if in.Country != "" {
		if err := v.validate.Var(in.Country, "iso3166_1_alpha2"); err != nil {
			return domain.Price{}, domain.NewError(domain.KindPriceCountryInvalid, in.Country)
		}
	}

	from, until, err := validDates(in.ValidFrom, in.ValidUntil)
	if err != nil {
		return domain.Price{}, err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	return domain.Price{
		ID:           id,
		Amount:       *in.Amount,
		Currency:     in.Currency,
		Country:      in.Country,
		CustomerType: in.CustomerType,
		Channel:      in.Channel,
		ValidFrom:    from,
		ValidUntil:   until,
	}, nil
}

// Amounts are stored as NUMERIC(14, 4).
const (
	amountScale     = 4
	amountIntDigits = 10
)

var maxAmount = decimal.New(1, amountIntDigits)

// storableAmount reports whether a fits the price column without rounding.
func storableAmount(a decimal.Decimal) bool {
	return a.LessThan(maxAmount) && a.Equal(a.Truncate(amountScale))
}

// validDates requires both bounds or neither, each a strict ISO-8601 value,
// with until strictly after from.
func validDates(from, until *string) (*time.Time, *time.Time, error) {
	if from == nil && until == nil {
		return nil, nil, nil
	}
	if from == nil || until == nil {
		return nil, nil, domain.NewError(domain.KindPriceValidDates, DateRange{ValidFrom: from, ValidUntil: until})
	}

	f, ok := parseISO8601(*from)
	if !ok {
		return nil, nil, domain.NewError(domain.KindPriceValidDates, DateRange{ValidFrom: from})
	}
	u, ok := parseISO8601(*until)
	if !ok {
		return nil, nil, domain.NewError(domain.KindPriceValidDates, DateRange{ValidUntil: until})
	}
	if !u.After(f) {
		return nil, nil, domain.NewError(domain.KindPriceValidDates, DateRange{ValidFrom: from, ValidUntil: until})
	}

	return &f, &u, nil
}

func parseISO8601(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
