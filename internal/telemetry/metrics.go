package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Provider fetch outcomes.
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeAbsent  = "absent"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	providerFetches *prometheus.CounterVec
	readingOrigins  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenmetrics_provider_fetch_total",
			Help: "Provider adapter calls by outcome.",
		}, []string{"provider", "outcome"}),
		readingOrigins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenmetrics_reading_origin_total",
			Help: "Which aggregation branch produced each token reading.",
		}, []string{"token", "origin"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenmetrics_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenmetrics_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.providerFetches, m.readingOrigins, m.httpRequests, m.httpDuration)
	return m
}

func (m *Metrics) ProviderFetch(provider, outcome string) {
	if m == nil {
		return
	}
	m.providerFetches.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ReadingOrigin(token, origin string) {
	if m == nil {
		return
	}
	m.readingOrigins.WithLabelValues(token, origin).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request volume, status and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := requestRoute(r)
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
