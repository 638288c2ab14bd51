package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Server struct {
	Port               string `json:"port"`
	RequestTimeoutSec  int    `json:"request_timeout_sec"`
	UpstreamTimeoutSec int    `json:"upstream_timeout_sec"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// RateLimit caps calls to one upstream. Zero values disable the limiter.
type RateLimit struct {
	MaxRequestsPerMinute  int `json:"max_requests_per_minute"`
	Burst                 int `json:"burst"`
	MinRequestIntervalSec int `json:"min_request_interval_sec"`
}

type Birdeye struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
	Chain    string `json:"chain"`
	RateLimit
}

type DexScreener struct {
	Endpoint string `json:"endpoint"`
	RateLimit
}

type Cache struct {
	TTLMillis int `json:"ttl_ms"`
}

// Token is one entry of the token registry.
type Token struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type Config struct {
	Server      Server      `json:"server"`
	Log         Log         `json:"log"`
	Birdeye     Birdeye     `json:"birdeye"`
	DexScreener DexScreener `json:"dexscreener"`
	Cache       Cache       `json:"cache"`
	Tokens      []Token     `json:"tokens"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10, UpstreamTimeoutSec: 5},
		Log:    Log{Level: "info", Format: "text"},
		Birdeye: Birdeye{
			Endpoint: "https://public-api.birdeye.so",
			Chain:    "solana",
		},
		DexScreener: DexScreener{
			Endpoint: "https://api.dexscreener.com/latest/dex/tokens",
		},
		Cache: Cache{TTLMillis: 60000},
		Tokens: []Token{
			{ID: "wreckit", Address: "7BJ6Mogdczju5hGGzpCqEvLVBTdDu6ixGUH3MMHmBAGS"},
			{ID: "ralph", Address: "CxWPdDBqxVo3fnTMRTvNuSrd4gkp78udSrFvkVDBAGS"},
		},
	}
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Server.UpstreamTimeoutSec) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

// reservedIDs are keys of the /tokens envelope a token id would collide with.
var reservedIDs = map[string]bool{"timestamp": true, "cached": true}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Tokens) == 0 {
		errs = append(errs, errors.New("tokens: registry is empty"))
	}
	seen := make(map[string]bool, len(c.Tokens))
	for i, t := range c.Tokens {
		if t.ID == "" || t.Address == "" {
			errs = append(errs, fmt.Errorf("tokens[%d]: id and address are required", i))
			continue
		}
		if reservedIDs[t.ID] {
			errs = append(errs, fmt.Errorf("tokens[%d]: id %q is reserved", i, t.ID))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("tokens[%d]: duplicate id %q", i, t.ID))
		}
		seen[t.ID] = true
	}
	if c.Cache.TTLMillis <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_ms must be positive, got %d", c.Cache.TTLMillis))
	}
	return errors.Join(errs...)
}

// Load reads JSON config from path. If path is empty, CONFIG_FILE and then
// ./config.json are tried; a missing file yields defaults. Variables from a
// .env file in the working directory are loaded first without overriding
// the real environment, then environment variables override file values.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)
	envInt("UPSTREAM_TIMEOUT_SEC", 1, &cfg.Server.UpstreamTimeoutSec)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("BIRDEYE_API_KEY"); v != "" {
		cfg.Birdeye.APIKey = v
	}
	if v := os.Getenv("BIRDEYE_ENDPOINT"); v != "" {
		cfg.Birdeye.Endpoint = v
	}
	if v := os.Getenv("BIRDEYE_CHAIN"); v != "" {
		cfg.Birdeye.Chain = v
	}
	envInt("BIRDEYE_MAX_RPM", 0, &cfg.Birdeye.MaxRequestsPerMinute)
	envInt("BIRDEYE_BURST", 1, &cfg.Birdeye.Burst)
	envInt("BIRDEYE_MIN_INTERVAL_SEC", 0, &cfg.Birdeye.MinRequestIntervalSec)

	if v := os.Getenv("DEXSCREENER_ENDPOINT"); v != "" {
		cfg.DexScreener.Endpoint = v
	}
	envInt("DEXSCREENER_MAX_RPM", 0, &cfg.DexScreener.MaxRequestsPerMinute)
	envInt("DEXSCREENER_BURST", 1, &cfg.DexScreener.Burst)
	envInt("DEXSCREENER_MIN_INTERVAL_SEC", 0, &cfg.DexScreener.MinRequestIntervalSec)

	envInt("CACHE_TTL_MS", 1, &cfg.Cache.TTLMillis)

	if v := os.Getenv("TOKENS"); v != "" {
		tokens, err := parseTokens(v)
		if err != nil {
			return fmt.Errorf("TOKENS: %w", err)
		}
		cfg.Tokens = tokens
	}
	return nil
}

// envInt overwrites dst when the variable parses to an int >= min.
func envInt(key string, min int, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err == nil && x >= min {
		*dst = x
	}
}

// parseTokens reads "id=address,id=address".
func parseTokens(s string) ([]Token, error) {
	var out []Token
	for _, p := range splitCSV(s) {
		id, addr, ok := strings.Cut(p, "=")
		id, addr = strings.TrimSpace(id), strings.TrimSpace(addr)
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("malformed entry %q, want id=address", p)
		}
		out = append(out, Token{ID: id, Address: addr})
	}
	return out, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
