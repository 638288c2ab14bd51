package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"tokenmetrics/internal/aggregate"
	"tokenmetrics/internal/cache"
	"tokenmetrics/internal/logging"
	"tokenmetrics/internal/provider/birdeye"
	"tokenmetrics/internal/telemetry"
)

const (
	defaultTimeframe = "1H"
	historyWindow    = 24 * time.Hour
	// JavaScript's Date.toISOString layout.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

var timeframes = map[string]bool{"1m": true, "5m": true, "15m": true, "1H": true, "4H": true, "1D": true}

type Aggregator interface {
	FetchAll(ctx context.Context, tokens []aggregate.Token) ([]aggregate.Result, error)
}

type HistorySource interface {
	HasAPIKey() bool
	GetOHLCV(ctx context.Context, address, timeframe string, from, to time.Time) ([]birdeye.Candle, error)
}

type Server struct {
	agg     Aggregator
	history HistorySource
	store   *cache.Store
	tokens  []aggregate.Token

	log            logrus.FieldLogger
	metrics        *telemetry.Metrics
	now            func() time.Time
	requestTimeout time.Duration
}

type Option func(*Server)

func WithLogger(log logrus.FieldLogger) Option { return func(s *Server) { s.log = log } }

func WithMetrics(m *telemetry.Metrics) Option { return func(s *Server) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithRequestTimeout bounds the upstream work of a single request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func NewServer(agg Aggregator, history HistorySource, store *cache.Store, tokens []aggregate.Token, opts ...Option) *Server {
	s := &Server{
		agg:            agg,
		history:        history,
		store:          store,
		tokens:         tokens,
		log:            logging.Discard(),
		now:            time.Now,
		requestTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount installs the middleware stack and routes on r. Routes added to r
// afterwards share the middleware.
func (s *Server) Mount(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.Middleware)
	r.Use(s.recoverPanic)
	r.Use(cors)
	r.Use(middleware.Compress(5, "application/json", "text/plain"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	for _, prefix := range []string{"", "/api"} {
		r.Get(prefix+"/tokens", s.handleTokens)
		r.Get(prefix+"/history", s.handleHistory)
	}
}

type apiError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message, details string) {
	writeJSON(w, statusCode, apiError{Error: message, Details: details})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	results, err := s.fetchAll(ctx)
	if err != nil {
		s.log.WithField("request_id", middleware.GetReqID(r.Context())).WithError(err).Error("token aggregation failed")
		body, ok := s.cachedSnapshot()
		if !ok {
			writeError(w, http.StatusInternalServerError, "Failed to fetch token data", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, body)
		return
	}

	body := make(map[string]any, len(results)+1)
	for _, res := range results {
		body[res.Token] = res.Reading
	}
	body["timestamp"] = s.timestamp()
	writeJSON(w, http.StatusOK, body)
}

// fetchAll turns an aggregator panic into an error so /tokens can still
// serve the cache.
func (s *Server) fetchAll(ctx context.Context) (results []aggregate.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			results, err = nil, fmt.Errorf("aggregator panic: %v", rec)
		}
	}()
	return s.agg.FetchAll(ctx, s.tokens)
}

// cachedSnapshot reports every token's stored reading regardless of age.
// ok is false when the store has nothing for any token.
func (s *Server) cachedSnapshot() (map[string]any, bool) {
	body := make(map[string]any, len(s.tokens)+2)
	var found bool
	for _, tok := range s.tokens {
		e, ok := s.store.Get(tok.ID)
		if !ok {
			body[tok.ID] = nil
			continue
		}
		data := e.Data
		body[tok.ID] = &data
		found = true
	}
	body["timestamp"] = s.timestamp()
	body["cached"] = true
	return body, found
}

type historyPoint struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Value  float64 `json:"value"`
	Volume float64 `json:"volume"`
}

type historyResponse struct {
	Token     string         `json:"token"`
	Timeframe string         `json:"timeframe"`
	Data      []historyPoint `json:"data"`
	Timestamp string         `json:"timestamp"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tok, ok := s.lookup(strings.TrimSpace(query.Get("token")))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid token", "")
		return
	}
	timeframe := strings.TrimSpace(query.Get("timeframe"))
	if timeframe == "" {
		timeframe = defaultTimeframe
	}
	if !timeframes[timeframe] {
		writeError(w, http.StatusBadRequest, "Invalid timeframe", "")
		return
	}
	if !s.history.HasAPIKey() {
		writeError(w, http.StatusInternalServerError, "API key not configured", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	to := s.now()
	candles, err := s.history.GetOHLCV(ctx, tok.Address, timeframe, to.Add(-historyWindow), to)
	if err != nil {
		entry := s.log.WithFields(logrus.Fields{"token": tok.ID, "timeframe": timeframe}).WithError(err)
		var se *birdeye.StatusError
		if errors.As(err, &se) {
			entry.WithField("status", se.StatusCode).Error("birdeye history request rejected")
			writeError(w, http.StatusInternalServerError, "Failed to fetch from Birdeye", se.Body)
			return
		}
		entry.Error("history fetch failed")
		writeError(w, http.StatusInternalServerError, "Failed to fetch history", err.Error())
		return
	}

	points := make([]historyPoint, 0, len(candles))
	for _, c := range candles {
		points = append(points, historyPoint{
			Time:   c.UnixTime,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Value:  c.Close,
			Volume: c.Volume,
		})
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Token:     tok.ID,
		Timeframe: timeframe,
		Data:      points,
		Timestamp: s.timestamp(),
	})
}

func (s *Server) lookup(id string) (aggregate.Token, bool) {
	for _, tok := range s.tokens {
		if tok.ID == id {
			return tok, true
		}
	}
	return aggregate.Token{}, false
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic turns a handler panic into a JSON 500.
func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"panic":      rec,
				}).Error("handler panic")
				writeError(w, http.StatusInternalServerError, "internal server error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
