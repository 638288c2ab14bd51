package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tokenmetrics/internal/aggregate"
	"tokenmetrics/internal/api"
	"tokenmetrics/internal/cache"
	"tokenmetrics/internal/config"
	"tokenmetrics/internal/httpx"
	"tokenmetrics/internal/provider"
	"tokenmetrics/internal/provider/birdeye"
	"tokenmetrics/internal/provider/dexscreener"
	"tokenmetrics/internal/provider/ratelimit"
	"tokenmetrics/internal/telemetry"
)

// App is the wired service: providers, cache, aggregator and HTTP API.
type App struct {
	Config     config.Config
	Tokens     []aggregate.Token
	Store      *cache.Store
	Aggregator *aggregate.Aggregator
	Birdeye    *birdeye.BirdeyeAPIClient
	Server     *api.Server

	gatherer prometheus.Gatherer
}

// New wires every component from cfg. reg receives the service metrics
// and backs /metrics; nil disables both.
func New(cfg config.Config, log logrus.FieldLogger, reg *prometheus.Registry) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var metrics *telemetry.Metrics
	var gatherer prometheus.Gatherer
	if reg != nil {
		metrics = telemetry.New(reg)
		gatherer = reg
	}

	hc := httpx.New(cfg.UpstreamTimeout())

	be, err := birdeye.NewBirdeyeAPIClient(
		cfg.Birdeye.APIKey,
		birdeye.WithBaseURL(cfg.Birdeye.Endpoint),
		birdeye.WithChain(cfg.Birdeye.Chain),
		birdeye.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, fmt.Errorf("birdeye client: %w", err)
	}
	if !be.HasAPIKey() {
		log.Warn("BIRDEYE_API_KEY not set; primary provider disabled and /history unavailable")
	}

	primary := limit(birdeye.NewAdapter(be), cfg.Birdeye.RateLimit)
	secondary := limit(dexscreener.New(dexscreener.Config{URL: cfg.DexScreener.Endpoint}, hc), cfg.DexScreener.RateLimit)

	store := cache.NewStore(cfg.CacheTTL())
	agg := aggregate.New(primary, secondary, store,
		aggregate.WithLogger(log),
		aggregate.WithMetrics(metrics),
		aggregate.WithTimeout(cfg.RequestTimeout()),
	)

	tokens := make([]aggregate.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		tokens = append(tokens, aggregate.Token{ID: t.ID, Address: t.Address})
	}

	srv := api.NewServer(agg, be, store, tokens,
		api.WithLogger(log),
		api.WithMetrics(metrics),
		api.WithRequestTimeout(cfg.RequestTimeout()),
	)

	return &App{
		Config:     cfg,
		Tokens:     tokens,
		Store:      store,
		Aggregator: agg,
		Birdeye:    be,
		Server:     srv,
		gatherer:   gatherer,
	}, nil
}

func limit(p provider.Provider, rl config.RateLimit) provider.Provider {
	return ratelimit.Wrap(p, rl.MaxRequestsPerMinute, rl.Burst, time.Duration(rl.MinRequestIntervalSec)*time.Second)
}

// Handler returns the HTTP API, plus /metrics when a registry was given.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	a.Server.Mount(r)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
