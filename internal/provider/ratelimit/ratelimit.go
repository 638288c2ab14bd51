package ratelimit

import (
	"context"
	"sync"
	"time"

	"tokenmetrics/internal/provider"
)

// MinInterval spaces calls to a provider at least Interval apart. Each
// caller books the next free slot; a canceled wait hands its slot back
// only if nobody booked after it.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) book() (slot time.Time, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	slot = now
	if m.next.After(now) {
		slot = m.next
	}
	m.next = slot.Add(m.Interval)
	return slot, slot.Sub(now)
}

func (m *MinInterval) Fetch(ctx context.Context, address string) (*provider.Reading, error) {
	if m.Interval <= 0 {
		return m.P.Fetch(ctx, address)
	}
	slot, wait := m.book()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.next.Equal(slot.Add(m.Interval)) {
				m.next = slot
			}
			m.mu.Unlock()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return m.P.Fetch(ctx, address)
}

// Wrap applies the limiter configured for a provider: a token bucket when
// perMinute is set, otherwise a minimum interval, otherwise nothing.
func Wrap(p provider.Provider, perMinute, burst int, minInterval time.Duration) provider.Provider {
	switch {
	case perMinute > 0:
		return &TokenBucketProvider{P: p, TB: NewTokenBucket(float64(perMinute)/60.0, burst)}
	case minInterval > 0:
		return &MinInterval{P: p, Interval: minInterval}
	default:
		return p
	}
}
