package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Candle is one OHLCV bucket.
type Candle struct {
	UnixTime int64   `json:"unixTime"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

type ohlcvResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Items []Candle `json:"items"`
	} `json:"data"`
}

// GetOHLCV retrieves candles for address between from and to.
// timeframe is passed through as Birdeye's "type" (1m, 5m, 15m, 1H, 4H, 1D).
func (c *BirdeyeAPIClient) GetOHLCV(ctx context.Context, address, timeframe string, from, to time.Time) ([]Candle, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("type", timeframe)
	query.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	query.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	u := fmt.Sprintf("%s/defi/ohlcv?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	res, err := c.get(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var body ohlcvResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding ohlcv: %w", err)
	}
	if body.Data == nil {
		return []Candle{}, nil
	}
	// {"unixTime":1726700400,"o":0.0123,"h":0.0131,"l":0.0119,"c":0.0127,"v":51234.5,"type":"1H"}
	candles := body.Data.Items
	if candles == nil {
		candles = []Candle{}
	}
	return candles, nil
}
