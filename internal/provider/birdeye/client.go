package birdeye

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	baseURL      = "https://public-api.birdeye.so"
	defaultChain = "solana"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=birdeye_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// BirdeyeAPIClient is a client for the Birdeye public API.
type BirdeyeAPIClient struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// apiKey is sent as X-API-KEY; empty means unauthenticated.
	apiKey string
}

// BirdeyeAPIClientOption is a configuration option for the Birdeye API client.
type BirdeyeAPIClientOption func(*BirdeyeAPIClient)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) BirdeyeAPIClientOption {
	return func(c *BirdeyeAPIClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) BirdeyeAPIClientOption {
	return func(c *BirdeyeAPIClient) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) BirdeyeAPIClientOption {
	return func(c *BirdeyeAPIClient) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithChain selects the chain queried through the x-chain header.
func WithChain(chain string) BirdeyeAPIClientOption {
	return func(c *BirdeyeAPIClient) {
		if chain != "" {
			c.header.Set("x-chain", chain)
		}
	}
}

// NewBirdeyeAPIClient creates a new Birdeye API client.
func NewBirdeyeAPIClient(key string, options ...BirdeyeAPIClientOption) (*BirdeyeAPIClient, error) {
	var client = &BirdeyeAPIClient{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		apiKey:     strings.TrimSpace(key),
	}
	client.header.Set("x-chain", defaultChain)
	client.header.Set("Accept", "application/json")
	if client.apiKey != "" {
		// https://docs.birdeye.so/docs/authentication-api-keys
		client.header.Set("X-API-KEY", client.apiKey)
	}
	for _, option := range options {
		option(client)
	}
	if _, err := url.Parse(client.baseURL); err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	return client, nil
}

// HasAPIKey reports whether requests will be authenticated.
func (c *BirdeyeAPIClient) HasAPIKey() bool { return c.apiKey != "" }

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	// Body holds the first bytes of the upstream response body.
	Body string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("birdeye status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("birdeye status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Err }

func statusError(res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
	se := &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	switch res.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		se.Err = ErrUnauthorized
	case http.StatusTooManyRequests:
		se.Err = ErrRateLimited
	}
	return se
}

func (c *BirdeyeAPIClient) get(req *http.Request) (*http.Response, error) {
	req.Header = c.header.Clone()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		return nil, statusError(res)
	}
	return res, nil
}
