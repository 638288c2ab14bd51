package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tokenmetrics/internal/cache"
	"tokenmetrics/internal/logging"
	"tokenmetrics/internal/provider"
	"tokenmetrics/internal/telemetry"
)

const DefaultTimeout = 10 * time.Second

// ErrUnexpected marks a fault that escaped the provider contract (a panic).
var ErrUnexpected = errors.New("unexpected aggregation fault")

// Token pairs the routing/cache key with the on-chain address.
type Token struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Origin names the branch that produced a Result.
type Origin string

const (
	OriginPrimary   Origin = "primary"
	OriginSecondary Origin = "secondary"
	OriginCache     Origin = "cache"   // cached reading younger than the TTL
	OriginPartial   Origin = "partial" // present but invalid provider data
	OriginStale     Origin = "stale"   // cached reading of any age
	OriginNone      Origin = "none"
)

// Result is the best available reading for one token. Reading is nil
// only when Origin is OriginNone.
type Result struct {
	Token   string
	Reading *provider.Reading
	Origin  Origin
}

// Aggregator reconciles a primary and a secondary provider per token,
// falling back to the cache store.
type Aggregator struct {
	primary   provider.Provider
	secondary provider.Provider
	store     *cache.Store
	log       logrus.FieldLogger
	metrics   *telemetry.Metrics
	timeout   time.Duration

	// coalesces overlapping requests for the same token
	sf singleflight.Group
}

type Option func(*Aggregator)

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) { a.log = log }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithTimeout bounds one shared resolution of a token.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(primary, secondary provider.Provider, store *cache.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		primary:   primary,
		secondary: secondary,
		store:     store,
		log:       logging.Discard(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch resolves one token. Provider failures never surface here; the
// error is non-nil only for ErrUnexpected.
//
// Overlapping calls for a token share one resolution. The shared work runs
// detached from any single caller's cancellation, bounded by the
// aggregator timeout; a caller whose ctx ends first gets the cache
// fallback instead.
func (a *Aggregator) Fetch(ctx context.Context, tok Token) (Result, error) {
	ch := a.sf.DoChan(tok.ID, func() (v any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", ErrUnexpected, rec)
			}
		}()
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return a.resolve(flightCtx, tok)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Result{Token: tok.ID, Origin: OriginNone}, res.Err
		}
		return res.Val.(Result), nil
	case <-ctx.Done():
		a.log.WithField("token", tok.ID).WithError(ctx.Err()).Warn("caller gave up before resolution; serving cache")
		return a.choose(tok, nil, nil), nil
	}
}

// FetchAll resolves every token on its own goroutine and returns results
// in input order. Tokens do not share cancellation, so one token's
// failure cannot cut another short.
func (a *Aggregator) FetchAll(ctx context.Context, tokens []Token) ([]Result, error) {
	results := make([]Result, len(tokens))
	var g errgroup.Group
	for i, tok := range tokens {
		g.Go(func() error {
			r, err := a.Fetch(ctx, tok)
			if err != nil {
				return fmt.Errorf("token %s: %w", tok.ID, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Aggregator) resolve(ctx context.Context, tok Token) (Result, error) {
	var (
		wg                       sync.WaitGroup
		primary, secondary       *provider.Reading
		primaryErr, secondaryErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary, primaryErr = a.call(ctx, a.primary, tok)
	}()
	go func() {
		defer wg.Done()
		secondary, secondaryErr = a.call(ctx, a.secondary, tok)
	}()
	wg.Wait()
	if err := errors.Join(primaryErr, secondaryErr); err != nil {
		return Result{}, err
	}

	res := a.choose(tok, primary, secondary)
	a.metrics.ReadingOrigin(tok.ID, string(res.Origin))
	entry := a.log.WithFields(logrus.Fields{"token": tok.ID, "origin": res.Origin})
	switch res.Origin {
	case OriginPrimary, OriginSecondary, OriginCache:
		entry.Debug("token reading resolved")
	default:
		entry.Warn("no valid fresh reading; serving degraded data")
	}
	return res, nil
}

// choose applies the preference order: valid primary, valid secondary,
// fresh cache, any provider data, cache of any age, nothing.
func (a *Aggregator) choose(tok Token, primary, secondary *provider.Reading) Result {
	switch {
	case provider.IsValid(primary):
		a.store.Put(tok.ID, *primary)
		return Result{Token: tok.ID, Reading: primary, Origin: OriginPrimary}
	case provider.IsValid(secondary):
		a.store.Put(tok.ID, *secondary)
		return Result{Token: tok.ID, Reading: secondary, Origin: OriginSecondary}
	}

	if cached, ok := a.store.Fresh(tok.ID); ok {
		return Result{Token: tok.ID, Reading: &cached, Origin: OriginCache}
	}
	if primary != nil {
		return Result{Token: tok.ID, Reading: primary, Origin: OriginPartial}
	}
	if secondary != nil {
		return Result{Token: tok.ID, Reading: secondary, Origin: OriginPartial}
	}
	if e, ok := a.store.Get(tok.ID); ok {
		data := e.Data
		return Result{Token: tok.ID, Reading: &data, Origin: OriginStale}
	}
	return Result{Token: tok.ID, Origin: OriginNone}
}

// call runs one provider. Its errors become absence; only a panic is
// reported back.
func (a *Aggregator) call(ctx context.Context, p provider.Provider, tok Token) (r *provider.Reading, fault error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, fault = nil, fmt.Errorf("%w: provider %s: %v", ErrUnexpected, p.Name(), rec)
		}
	}()

	r, err := p.Fetch(ctx, tok.Address)
	if err != nil {
		a.metrics.ProviderFetch(p.Name(), telemetry.OutcomeAbsent)
		a.log.WithFields(logrus.Fields{
			"token":    tok.ID,
			"provider": p.Name(),
		}).WithError(err).Warn("provider returned no data")
		return nil, nil
	}
	switch {
	case r == nil:
		a.metrics.ProviderFetch(p.Name(), telemetry.OutcomeAbsent)
	case provider.IsValid(r):
		a.metrics.ProviderFetch(p.Name(), telemetry.OutcomeValid)
	default:
		a.metrics.ProviderFetch(p.Name(), telemetry.OutcomeInvalid)
	}
	return r, nil
}
