package birdeye

import (
	"context"

	"tokenmetrics/internal/provider"
)

// Adapter exposes the Birdeye token overview as a provider.Provider.
type Adapter struct {
	name   string
	client *BirdeyeAPIClient
}

func NewAdapter(client *BirdeyeAPIClient) *Adapter {
	return &Adapter{name: "birdeye", client: client}
}

func (a *Adapter) Name() string { return a.name }

// Fetch never calls upstream without an API key.
func (a *Adapter) Fetch(ctx context.Context, address string) (*provider.Reading, error) {
	if !a.client.HasAPIKey() {
		return nil, provider.ErrMissingCredential
	}
	ov, err := a.client.GetTokenOverview(ctx, address)
	if err != nil {
		return nil, err
	}
	if ov == nil || value(ov.Price) == 0 {
		return nil, provider.ErrNoPrice
	}

	marketCap := value(ov.MC)
	if marketCap == 0 {
		marketCap = value(ov.RealMC)
	}
	return &provider.Reading{
		Price:          value(ov.Price),
		PriceChange24h: value(ov.PriceChange24hPercent),
		Volume24h:      value(ov.V24hUSD),
		Liquidity:      value(ov.Liquidity),
		MarketCap:      marketCap,
		FDV:            value(ov.FDV),
		Txns24h: provider.Transactions{
			Buys:  int64(value(ov.Buy24h)),
			Sells: int64(value(ov.Sell24h)),
		},
	}, nil
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
