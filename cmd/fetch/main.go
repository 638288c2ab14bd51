package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"

	"tokenmetrics/internal/app"
	"tokenmetrics/internal/config"
	"tokenmetrics/internal/logging"
)

// fetch runs one aggregation (or one history lookup) in-process and prints
// the same JSON the server would return.
func main() {
	var tokenID string
	var history string
	var configPath string
	flag.StringVar(&tokenID, "token", "", "limit output to one token id")
	flag.StringVar(&history, "history", "", "print OHLCV history for -token at this timeframe (1m,5m,15m,1H,4H,1D)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}

	if tokenID != "" {
		cfg.Tokens = only(cfg.Tokens, tokenID)
		if len(cfg.Tokens) == 0 {
			log.Fatalf("unknown token %q", tokenID)
		}
	}

	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.WithError(err).Fatal("startup")
	}

	target := "/tokens"
	if history != "" {
		if tokenID == "" {
			log.Fatal("-history needs -token")
		}
		target = "/history?" + url.Values{"token": {tokenID}, "timeframe": {history}}.Encode()
	}

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))

	var out bytes.Buffer
	if err := json.Indent(&out, rr.Body.Bytes(), "", "  "); err != nil {
		out.Reset()
		out.Write(rr.Body.Bytes())
	}
	fmt.Println(out.String())
	if rr.Code >= http.StatusBadRequest {
		log.WithField("status", rr.Code).Error("request failed")
		os.Exit(1)
	}
}

func only(tokens []config.Token, id string) []config.Token {
	for _, t := range tokens {
		if t.ID == id {
			return []config.Token{t}
		}
	}
	return nil
}
