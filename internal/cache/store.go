package cache

import (
	"sync"
	"time"

	"tokenmetrics/internal/provider"
)

// DefaultTTL is how long a stored reading counts as fresh.
const DefaultTTL = 60 * time.Second

// Entry is the last valid reading stored for a token and when it was captured.
type Entry struct {
	Data      provider.Reading
	Timestamp time.Time
}

// Store maps token IDs to their last known good reading.
// Entries are replaced whole and never evicted; the key set is the small
// fixed token registry. Stale entries stay available through Get.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]Entry
}

type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{ttl: ttl, now: time.Now, items: make(map[string]Entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

// Put records r as the latest reading for id, stamped with the current time.
func (s *Store) Put(id string, r provider.Reading) {
	e := Entry{Data: r, Timestamp: s.now()}
	s.mu.Lock()
	s.items[id] = e
	s.mu.Unlock()
}

// Get returns the entry for id regardless of age.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	return e, ok
}

// Fresh returns the reading for id only while it is younger than the TTL.
func (s *Store) Fresh(id string) (provider.Reading, bool) {
	e, ok := s.Get(id)
	if !ok || s.now().Sub(e.Timestamp) >= s.ttl {
		return provider.Reading{}, false
	}
	return e.Data, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
