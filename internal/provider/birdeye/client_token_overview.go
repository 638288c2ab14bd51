package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TokenOverview is the subset of /defi/token_overview this service reads.
// Every field is nullable upstream.
type TokenOverview struct {
	Price                 *float64 `json:"price"`
	PriceChange24hPercent *float64 `json:"priceChange24hPercent"`
	V24hUSD               *float64 `json:"v24hUSD"`
	Liquidity             *float64 `json:"liquidity"`
	MC                    *float64 `json:"mc"`
	RealMC                *float64 `json:"realMc"`
	FDV                   *float64 `json:"fdv"`
	Buy24h                *float64 `json:"buy24h"`
	Sell24h               *float64 `json:"sell24h"`
}

type tokenOverviewResponse struct {
	Success bool           `json:"success"`
	Data    *TokenOverview `json:"data"`
}

// GetTokenOverview retrieves market stats for a token address.
// A nil overview with nil error means Birdeye answered without data.
func (c *BirdeyeAPIClient) GetTokenOverview(ctx context.Context, address string) (*TokenOverview, error) {
	query := url.Values{}
	query.Set("address", address)

	u := fmt.Sprintf("%s/defi/token_overview?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	res, err := c.get(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var body tokenOverviewResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding token overview: %w", err)
	}
	return body.Data, nil
}
