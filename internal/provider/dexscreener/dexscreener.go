package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"tokenmetrics/internal/httpx"
	"tokenmetrics/internal/provider"
)

const defaultURL = "https://api.dexscreener.com/latest/dex/tokens"

// Config controls the DexScreener provider behavior.
type Config struct {
	Name    string
	URL     string            // token endpoint; the address is appended as a path segment
	Headers map[string]string // optional extra headers
}

// Provider reads the first pair DexScreener lists for a token.
// The endpoint needs no credential.
type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "dexscreener"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) Fetch(ctx context.Context, address string) (*provider.Reading, error) {
	u := p.cfg.URL + "/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("GET %s -> %d: %s", u, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(body.Pairs) == 0 || strings.TrimSpace(body.Pairs[0].PriceUSD) == "" {
		return nil, provider.ErrNoPrice
	}
	return body.Pairs[0].reading(), nil
}

// Response model for /latest/dex/tokens/{address}. Pairs is null when
// DexScreener does not know the token.
type apiResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []pair `json:"pairs"`
}

type pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange window `json:"priceChange"`
	Volume      window `json:"volume"`
	Liquidity   struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	Txns      struct {
		H24 struct {
			Buys  float64 `json:"buys"`
			Sells float64 `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

type window struct {
	H24 float64 `json:"h24"`
}

func (p pair) reading() *provider.Reading {
	marketCap := p.MarketCap
	if marketCap == 0 {
		marketCap = p.FDV
	}
	return &provider.Reading{
		Price:          parsePrice(p.PriceUSD),
		PriceChange24h: p.PriceChange.H24,
		Volume24h:      p.Volume.H24,
		Liquidity:      p.Liquidity.USD,
		MarketCap:      marketCap,
		FDV:            p.FDV,
		Txns24h: provider.Transactions{
			Buys:  int64(p.Txns.H24.Buys),
			Sells: int64(p.Txns.H24.Sells),
		},
	}
}

// parsePrice reads DexScreener's decimal string; anything unparsable is 0.
func parsePrice(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
