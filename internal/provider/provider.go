package provider

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredential is returned by adapters that need an API key
	// when none is configured. No request is attempted.
	ErrMissingCredential = errors.New("provider credential not configured")
	// ErrNoPrice is returned when the upstream payload carries no usable price.
	ErrNoPrice = errors.New("no usable price in payload")
)

// Transactions counts trades over the last 24 hours.
type Transactions struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

// Reading is the normalized shape returned by all providers.
// Missing upstream numeric fields are represented as 0.
type Reading struct {
	Price          float64      `json:"price"`
	PriceChange24h float64      `json:"priceChange24h"`
	Volume24h      float64      `json:"volume24h"`
	Liquidity      float64      `json:"liquidity"`
	MarketCap      float64      `json:"marketCap"`
	FDV            float64      `json:"fdv"`
	Txns24h        Transactions `json:"txns24h"`
}

// IsValid reports whether r is usable: present, priced and with a market cap.
func IsValid(r *Reading) bool {
	return r != nil && r.Price > 0 && r.MarketCap > 0
}

// Provider fetches one token's market state by chain address.
// A nil Reading means the provider has no data; the error, if any,
// only explains why.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, address string) (*Reading, error)
}
