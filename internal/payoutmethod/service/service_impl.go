package service

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/biter777/countries"
	"github.com/craftforge/payouts/internal/clock"
	"github.com/craftforge/payouts/internal/config"
	"github.com/craftforge/payouts/internal/gateway/tremendous"
	obsmetrics "github.com/craftforge/payouts/internal/observability/metrics"
	payoutmethoddomain "github.com/craftforge/payouts/internal/payoutmethod/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Gift-card products the platform intentionally excludes: physical visa cards
// and anything redeemable for cryptocurrency.
var denylistedProductIDs = map[string]struct{}{
	// physical visa
	"A2J05SWPI2QG": {},
	// crypto
	"1UOOSHUUYTAM": {},
	"5EVJN47HPDFT": {},
	"NI9M4EVAVGFJ": {},
	"VLY29QHTMNGT": {},
	"7XU98H109Y3A": {},
	"0CGEDFP2UIKV": {},
	"PDYLQU0K073Y": {},
	"HCS5Z7O2NV5G": {},
	"IY1VMST1MOXS": {},
	"VRPZLJ7HCA8X": {},
	// bitcard (crypto)
	"GWQQS5RM8IZS": {},
	"896MYD4SGOGZ": {},
	"PWLEN1VZGMZA": {},
	"A2VRM96J5K5W": {},
	"HV9ICIM3JT7P": {},
	"K2KLSPVWC2Q4": {},
	"HRBRQLLTDF95": {},
	"UUBYLZVK7QAB": {},
	"BH8W3XEDEOJN": {},
	"7WGE043X1RYQ": {},
	"2B13MHUZZVTF": {},
	"JN6R44P86EYX": {},
	"DA8H43GU84SO": {},
	"QK2XAQHSDEH4": {},
	"J7K1IQFS76DK": {},
	"NL4JQ2G7UPRZ": {},
	"OEFTMSBA5ELH": {},
	"A3CQK6UHNV27": {},
}

var supportedCategories = map[string]struct{}{
	"merchant_cards": {},
	"visa":           {},
	"bank":           {},
	"ach":            {},
	"visa_card":      {},
}

var uprankIDs = map[string]struct{}{
	"ET0ZVETV5ILN":  {},
	"Q24BD9EZ332JT": {},
	"UIL1ZYJU5MKN":  {},
}

var downrankIDs = map[string]struct{}{
	"EIPF8Q00EMM1": {},
	"OU2MWXYWPNWQ": {},
}

type Params struct {
	fx.In

	Tremendous *tremendous.Client
	Policy     *config.PayoutPolicyHolder
	Clock      clock.Clock
	Log        *zap.Logger
}

type Service struct {
	tremendous *tremendous.Client
	policy     *config.PayoutPolicyHolder
	clock      clock.Clock
	log        *zap.Logger

	mu     sync.RWMutex
	cached *catalog
}

type catalog struct {
	options   []payoutmethoddomain.PayoutMethod
	expiresAt time.Time
}

func NewService(p Params) payoutmethoddomain.Service {
	return &Service{
		tremendous: p.Tremendous,
		policy:     p.Policy,
		clock:      p.Clock,
		log:        p.Log.Named("payoutmethod.service"),
	}
}

// GetPayoutMethods returns the catalog, refreshing it when the TTL elapsed.
// At most one refresh runs at a time; readers of a fresh catalog never block
// behind a refresher.
func (s *Service) GetPayoutMethods(ctx context.Context) ([]payoutmethoddomain.PayoutMethod, error) {
	s.mu.RLock()
	if s.cached != nil && s.clock.Now().Before(s.cached.expiresAt) {
		options := append([]payoutmethoddomain.PayoutMethod(nil), s.cached.options...)
		s.mu.RUnlock()
		return options, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) ([]payoutmethoddomain.PayoutMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.clock.Now().Before(s.cached.expiresAt) {
		return append([]payoutmethoddomain.PayoutMethod(nil), s.cached.options...), nil
	}

	methods, err := s.buildCatalog(ctx)
	obsmetrics.IncCatalogRefresh(err)
	if err != nil {
		if s.cached != nil {
			// Serve the expired generation rather than failing the caller;
			// the next call retries the refresh.
			s.log.Warn("payout method refresh failed, serving stale catalog", zap.Error(err))
			return append([]payoutmethoddomain.PayoutMethod(nil), s.cached.options...), nil
		}
		return nil, err
	}

	s.cached = &catalog{
		options:   methods,
		expiresAt: s.clock.Now().Add(s.policy.Get().CatalogTTL),
	}
	return append([]payoutmethoddomain.PayoutMethod(nil), methods...), nil
}

type productSku struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type productImage struct {
	Src  string `json:"src"`
	Type string `json:"type"`
}

type productCountry struct {
	Abbr string `json:"abbr"`
}

type product struct {
	ID            string           `json:"id"`
	Category      string           `json:"category"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Disclosure    string           `json:"disclosure"`
	Skus          []productSku     `json:"skus"`
	CurrencyCodes []string         `json:"currency_codes"`
	Countries     []productCountry `json:"countries"`
	Images        []productImage   `json:"images"`
}

type productsResponse struct {
	Products []product `json:"products"`
}

func (s *Service) buildCatalog(ctx context.Context) ([]payoutmethoddomain.PayoutMethod, error) {
	var response productsResponse
	if err := s.tremendous.Do(ctx, http.MethodGet, "products", nil, &response); err != nil {
		return nil, err
	}

	methods := make([]payoutmethoddomain.PayoutMethod, 0, len(response.Products))
	for _, p := range response.Products {
		if _, ok := supportedCategories[p.Category]; !ok {
			continue
		}
		if _, ok := denylistedProductIDs[p.ID]; ok {
			continue
		}

		method := mapProduct(p)

		// Fixed-denomination gift cards in non-USD currencies are excluded:
		// the platform cannot do currency conversion for them.
		if method.Interval.Type == payoutmethoddomain.IntervalFixed && !containsUSD(p.CurrencyCodes) {
			continue
		}

		methods = append(methods, method)
	}

	rankMethods(methods)

	return prependFirstParty(methods), nil
}

func mapProduct(p product) payoutmethoddomain.PayoutMethod {
	supported := make([]string, 0, len(p.Countries))
	for _, country := range p.Countries {
		supported = append(supported, country.Abbr)
	}

	var imageURL *string
	for _, image := range p.Images {
		if image.Type == "card" {
			src := image.Src
			imageURL = &src
			break
		}
	}

	var interval payoutmethoddomain.PayoutInterval
	switch {
	case len(p.Skus) > 1:
		values := make([]decimal.Decimal, 0, len(p.Skus))
		for _, sku := range p.Skus {
			values = append(values, sku.Min)
		}
		sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
		interval = payoutmethoddomain.FixedInterval(values)
	case len(p.Skus) == 1:
		interval = payoutmethoddomain.StandardInterval(p.Skus[0].Min, p.Skus[0].Max)
	default:
		interval = payoutmethoddomain.StandardInterval(decimal.Zero, decimal.NewFromInt(5000))
	}

	fee := payoutmethoddomain.PayoutMethodFee{Percentage: decimal.Zero, Min: decimal.Zero}
	if p.Category == "ach" {
		fee = payoutmethoddomain.PayoutMethodFee{
			Percentage: decimal.New(4, -2),
			Min:        decimal.New(25, -2),
		}
	}

	return payoutmethoddomain.PayoutMethod{
		ID:                 p.ID,
		Kind:               payoutmethoddomain.KindTremendous,
		Name:               p.Name,
		SupportedCountries: supported,
		ImageURL:           imageURL,
		Interval:           interval,
		Fee:                fee,
	}
}

func containsUSD(currencyCodes []string) bool {
	for _, code := range currencyCodes {
		if code == "USD" {
			return true
		}
	}
	return false
}

// rankMethods sorts up-ranked products first and down-ranked products last,
// alphabetically by name within each tier.
func rankMethods(methods []payoutmethoddomain.PayoutMethod) {
	rank := func(m payoutmethoddomain.PayoutMethod) int {
		if _, ok := uprankIDs[m.ID]; ok {
			return 0
		}
		if _, ok := downrankIDs[m.ID]; ok {
			return 2
		}
		return 1
	}
	sort.SliceStable(methods, func(i, j int) bool {
		ri, rj := rank(methods[i]), rank(methods[j])
		if ri != rj {
			return ri < rj
		}
		return methods[i].Name < methods[j].Name
	})
}

// prependFirstParty inserts the synthetic first-party methods at fixed
// positions 0, 1 and 2.
func prependFirstParty(methods []payoutmethoddomain.PayoutMethod) []payoutmethoddomain.PayoutMethod {
	oneDollar := decimal.NewFromInt(1)
	twentyDollars := decimal.NewFromInt(20)

	paypalUS := payoutmethoddomain.PayoutMethod{
		ID:                 "paypal_us",
		Kind:               payoutmethoddomain.KindPayPal,
		Name:               "PayPal",
		SupportedCountries: []string{"US"},
		Interval:           payoutmethoddomain.StandardInterval(decimal.New(25, -2), decimal.NewFromInt(100_000)),
		Fee: payoutmethoddomain.PayoutMethodFee{
			Percentage: decimal.New(2, -2),
			Min:        decimal.New(25, -2),
			Max:        &oneDollar,
		},
	}

	venmo := paypalUS
	venmo.ID = "venmo"
	venmo.Name = "Venmo"
	venmo.Kind = payoutmethoddomain.KindVenmo

	paypalIntl := payoutmethoddomain.PayoutMethod{
		ID:                 "paypal_in",
		Kind:               payoutmethoddomain.KindPayPal,
		Name:               "PayPal",
		SupportedCountries: nonUSCountries(),
		Interval:           payoutmethoddomain.StandardInterval(decimal.New(25, -2), decimal.NewFromInt(100_000)),
		Fee: payoutmethoddomain.PayoutMethodFee{
			Percentage: decimal.New(2, -2),
			Min:        decimal.Zero,
			Max:        &twentyDollars,
		},
	}

	out := make([]payoutmethoddomain.PayoutMethod, 0, len(methods)+3)
	out = append(out, paypalUS, venmo, paypalIntl)
	return append(out, methods...)
}

func nonUSCountries() []string {
	all := countries.All()
	codes := make([]string, 0, len(all))
	for _, country := range all {
		alpha2 := country.Alpha2()
		if alpha2 == "" || alpha2 == "US" {
			continue
		}
		codes = append(codes, alpha2)
	}
	sort.Strings(codes)
	return codes
}
