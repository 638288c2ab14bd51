package ratelimit

import (
	"context"
	"sync"
	"time"

	"tokenmetrics/internal/provider"
)

// TokenBucket refills at rate tokens per second up to capacity (the burst).
// It starts full.
type TokenBucket struct {
	rate     float64
	capacity float64
	now      func() time.Time

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	return newTokenBucket(tokensPerSecond, burst, time.Now)
}

func newTokenBucket(tokensPerSecond float64, burst int, now func() time.Time) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 1e-7
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		now:      now,
		tokens:   float64(burst),
		last:     now(),
	}
}

// reserve takes a token if one is available and returns 0, otherwise it
// returns how long until the next token accrues.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.rate)
		tb.last = now
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
	return max(wait, time.Millisecond)
}

// Wait blocks until one token is available or ctx is canceled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait := tb.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucketProvider gates a provider's calls through a token bucket.
type TokenBucketProvider struct {
	P  provider.Provider
	TB *TokenBucket
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

func (t *TokenBucketProvider) Fetch(ctx context.Context, address string) (*provider.Reading, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.P.Fetch(ctx, address)
}
