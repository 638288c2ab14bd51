package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL())
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout())
	assert.Equal(t, "solana", cfg.Birdeye.Chain)
	require.Len(t, cfg.Tokens, 2)
	assert.Equal(t, "wreckit", cfg.Tokens[0].ID)
	assert.Equal(t, "ralph", cfg.Tokens[1].ID)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "custom.json", `{
		"server": {"port": "9000"},
		"birdeye": {"api_key": "from-file", "max_requests_per_minute": 30, "burst": 2},
		"cache": {"ttl_ms": 1500}
	}`)
	t.Setenv("PORT", "")
	t.Setenv("BIRDEYE_API_KEY", "from-env")
	t.Setenv("DEXSCREENER_MAX_RPM", "120")
	t.Setenv("REQUEST_TIMEOUT_SEC", "nonsense")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Birdeye.APIKey)
	assert.Equal(t, 30, cfg.Birdeye.MaxRequestsPerMinute)
	assert.Equal(t, 120, cfg.DexScreener.MaxRequestsPerMinute)
	assert.Equal(t, 1500*time.Millisecond, cfg.CacheTTL())
	assert.Equal(t, 10, cfg.Server.RequestTimeoutSec, "unparsable values are ignored")
	assert.Equal(t, "https://public-api.birdeye.so", cfg.Birdeye.Endpoint)
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", writeFile(t, dir, "c.json", `{"log": {"level": "debug", "format": "json"}}`))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "BIRDEYE_API_KEY=dotenv-key\nPORT=7070\n")
	t.Setenv("PORT", "6060")
	// godotenv sets variables the process did not already have; register
	// cleanup so the key does not leak into other tests.
	t.Setenv("BIRDEYE_API_KEY", "")
	require.NoError(t, os.Unsetenv("BIRDEYE_API_KEY"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Birdeye.APIKey)
	assert.Equal(t, "6060", cfg.Server.Port, "real environment wins over .env")
}

func TestLoad_BadJSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := Load(writeFile(t, dir, "bad.json", `{"server":`))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_TokensEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKENS", " wreckit=AAA , bonk=BBB ")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []Token{{ID: "wreckit", Address: "AAA"}, {ID: "bonk", Address: "BBB"}}, cfg.Tokens)

	t.Setenv("TOKENS", "wreckit")
	_, err = Load("")
	assert.ErrorContains(t, err, "TOKENS")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty registry", mutate: func(c *Config) { c.Tokens = nil }, wantErr: "registry is empty"},
		{
			name:    "duplicate id",
			mutate:  func(c *Config) { c.Tokens = append(c.Tokens, Token{ID: "ralph", Address: "x"}) },
			wantErr: `duplicate id "ralph"`,
		},
		{name: "missing address", mutate: func(c *Config) { c.Tokens[0].Address = "" }, wantErr: "required"},
		{name: "reserved timestamp id", mutate: func(c *Config) { c.Tokens[0].ID = "timestamp" }, wantErr: `id "timestamp" is reserved`},
		{name: "reserved cached id", mutate: func(c *Config) { c.Tokens[1].ID = "cached" }, wantErr: `id "cached" is reserved`},
		{name: "zero ttl", mutate: func(c *Config) { c.Cache.TTLMillis = 0 }, wantErr: "ttl_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
