package httpx

import (
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "tokenmetrics/1.0"

// Client is the outbound client shared by the Birdeye and DexScreener
// adapters. It satisfies birdeye.HTTPClient.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	// Headers are set on every request that does not carry them already.
	Headers map[string]string
}

// New returns a Client whose calls are cut off after timeout, including a
// server that accepts the connection but never sends headers. Two upstream
// hosts are called per token, so the idle pool is kept small.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: DefaultUserAgent,
	}
}

// Do fills in default headers and sends req. Cancellation comes from the
// request's context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}
