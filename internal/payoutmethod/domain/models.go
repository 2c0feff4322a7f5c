package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PayoutMethodKind distinguishes first-party rails from gift-card products.
type PayoutMethodKind string

const (
	KindPayPal     PayoutMethodKind = "paypal"
	KindVenmo      PayoutMethodKind = "venmo"
	KindTremendous PayoutMethodKind = "tremendous"
)

type IntervalType string

const (
	IntervalStandard IntervalType = "standard"
	IntervalFixed    IntervalType = "fixed"
)

// PayoutInterval is either a standard min/max range or a fixed list of
// allowed denominations, sorted ascending.
type PayoutInterval struct {
	Type   IntervalType      `json:"type"`
	Min    decimal.Decimal   `json:"min"`
	Max    decimal.Decimal   `json:"max"`
	Values []decimal.Decimal `json:"values,omitempty"`
}

func StandardInterval(min, max decimal.Decimal) PayoutInterval {
	return PayoutInterval{Type: IntervalStandard, Min: min, Max: max}
}

func FixedInterval(values []decimal.Decimal) PayoutInterval {
	return PayoutInterval{Type: IntervalFixed, Values: values}
}

type PayoutMethodFee struct {
	Percentage decimal.Decimal  `json:"percentage"`
	Min        decimal.Decimal  `json:"min"`
	Max        *decimal.Decimal `json:"max,omitempty"`
}

// PayoutMethod is one entry of the curated catalog. Immutable once built for
// a cache generation.
type PayoutMethod struct {
	ID                 string           `json:"id"`
	Kind               PayoutMethodKind `json:"type"`
	Name               string           `json:"name"`
	SupportedCountries []string         `json:"supported_countries"`
	ImageURL           *string          `json:"image_url,omitempty"`
	Interval           PayoutInterval   `json:"interval"`
	Fee                PayoutMethodFee  `json:"fee"`
}

// Service serves the cached, filtered, ranked payout method catalog.
type Service interface {
	GetPayoutMethods(ctx context.Context) ([]PayoutMethod, error)
}
