package tracker

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// PricingMode selects where an asset's price comes from.
type PricingMode string

const (
	// PricingAuto serves the most recently cached market price with its
	// age, flagged stale once the age exceeds the refresh interval.
	PricingAuto PricingMode = "AUTO"
	// PricingManual serves the stored manual price unconditionally.
	PricingManual PricingMode = "MANUAL"
)

// ParsePricingMode parses a string into a PricingMode.
func ParsePricingMode(s string) (PricingMode, error) {
	switch m := PricingMode(strings.ToUpper(s)); m {
	case PricingAuto, PricingManual:
		return m, nil
	default:
		return "", fmt.Errorf("unknown pricing mode: %q", s)
	}
}

// Quote is a resolved price with its provenance. A zero or negative price
// means "unpriced" to every consumer; it is never silently substituted
// with zero value.
type Quote struct {
	Price   decimal.Decimal
	At      time.Time
	IsStale bool
	Source  PricingMode
}

// Unpriced reports whether the quote carries no usable price.
func (q Quote) Unpriced() bool { return !q.Price.IsPositive() }

// PriceResolver yields a price and its staleness for an asset.
type PriceResolver interface {
	ResolvePrice(assetID string) (Quote, error)
}

// StaticResolver resolves prices from a fixed table, the MANUAL mode
// semantics. Assets absent from the table are unpriced.
type StaticResolver map[string]decimal.Decimal

func (r StaticResolver) ResolvePrice(assetID string) (Quote, error) {
	price, ok := r[assetID]
	if !ok {
		return Quote{Source: PricingManual}, nil
	}
	return Quote{Price: price, Source: PricingManual}, nil
}

// FetchFunc fetches the current market price of an asset from a provider.
type FetchFunc func(assetID string) (decimal.Decimal, error)

// cachedPrice is one cache entry: a price and the instant it was observed.
type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// CachedResolver implements the AUTO pricing semantics: it serves the most
// recently cached price with an explicit stale flag once the entry is older
// than the refresh interval. Entries never expire: a stale price with its
// age beats no price at all.
//
// Fetching is optional; external pollers can feed the cache through Put
// instead.
type CachedResolver struct {
	fetch   FetchFunc
	refresh time.Duration
	cache   *gocache.Cache
	now     func() time.Time
}

// NewCachedResolver creates an AUTO resolver. fetch may be nil; refresh is
// the age beyond which a cached price is flagged stale.
func NewCachedResolver(fetch FetchFunc, refresh time.Duration) *CachedResolver {
	return &CachedResolver{
		fetch:   fetch,
		refresh: refresh,
		cache:   gocache.New(gocache.NoExpiration, 0),
		now:     time.Now,
	}
}

// Put records a price observed at the given instant.
func (r *CachedResolver) Put(assetID string, price decimal.Decimal, at time.Time) {
	r.cache.Set(assetID, cachedPrice{price: price, at: at}, gocache.NoExpiration)
}

// ResolvePrice serves the cached price, fetching the first one when a
// fetcher is configured. A fetch failure degrades to an unpriced quote:
// price unavailability never aborts the caller's computation.
func (r *CachedResolver) ResolvePrice(assetID string) (Quote, error) {
	if v, ok := r.cache.Get(assetID); ok {
		entry := v.(cachedPrice)
		return Quote{
			Price:   entry.price,
			At:      entry.at,
			IsStale: r.now().Sub(entry.at) > r.refresh,
			Source:  PricingAuto,
		}, nil
	}
	if r.fetch == nil {
		return Quote{Source: PricingAuto}, nil
	}
	price, err := r.fetch(assetID)
	if err != nil {
		return Quote{Source: PricingAuto}, nil
	}
	at := r.now()
	r.Put(assetID, price, at)
	return Quote{Price: price, At: at, Source: PricingAuto}, nil
}

// RegistryResolver dispatches on the asset's pricing mode: MANUAL assets get
// their stored price, AUTO assets go through the market resolver.
type RegistryResolver struct {
	Assets AssetRegistry
	Auto   PriceResolver
}

func (r RegistryResolver) ResolvePrice(assetID string) (Quote, error) {
	asset, ok := r.Assets.Asset(assetID)
	if !ok {
		return Quote{}, notFound("asset", assetID)
	}
	if asset.PricingMode == PricingManual {
		return Quote{Price: asset.ManualPrice, Source: PricingManual}, nil
	}
	if r.Auto == nil {
		return Quote{Source: PricingAuto}, nil
	}
	return r.Auto.ResolvePrice(assetID)
}
