package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"SENTINEL_PROVIDERS", "HTTPS_PROXY", "REDIS_ADDR", "LOG_LEVEL", "METRICS_ADDR", "SENTINEL_WATCHLIST"} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"sina", "tencent", "eastmoney"}, cfg.Providers)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ProviderTimeout)
	assert.Equal(t, 2, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, []int{5, 10, 20, 60}, cfg.Indicators.MAPeriods)
	assert.Equal(t, 14, cfg.Indicators.RSIPeriod)
	assert.Equal(t, 1.5, cfg.Breadth.BullishRatio)
	assert.Equal(t, 0.67, cfg.Breadth.BearishRatio)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers: [eastmoney, sina]
retry:
  max_attempts: 3
  backoff: 50ms
reconcile:
  stale_after: 2m
sentiment:
  lexicon:
    重组: 2
metrics:
  enabled: false
`), 0o644))

	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"eastmoney", "sina"}, cfg.Providers)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.Backoff)
	assert.Equal(t, 2*time.Minute, cfg.Reconcile.StaleAfter)
	assert.Equal(t, 2.0, cfg.Sentiment.Lexicon["重组"])
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	// Untouched sections keep their defaults.
	assert.Equal(t, 26, cfg.Indicators.MACDSlow)
}

func TestLoad_ProvidersFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SENTINEL_PROVIDERS", " Tencent, mock ")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"tencent", "mock"}, cfg.Providers)
}

func TestValidate_Rejects(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Providers = []string{"yahoo"} }},
		{"no providers", func(c *Config) { c.Providers = nil }},
		{"duplicate provider", func(c *Config) { c.Providers = []string{"sina", "sina"} }},
		{"zero timeout", func(c *Config) { c.HTTP.ProviderTimeout = 0 }},
		{"odd ma window", func(c *Config) { c.Indicators.MAPeriods = []int{7} }},
		{"macd order", func(c *Config) { c.Indicators.MACDSlow = 10 }},
		{"short lookback", func(c *Config) { c.Indicators.Lookback = 30 }},
		{"inverted breadth", func(c *Config) { c.Breadth.BearishRatio = 2 }},
		{"bad cache backend", func(c *Config) { c.Cache.Backend = "disk" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"sina", "tencent", "eastmoney"}, cfg.Providers)
	assert.Equal(t, -1.5, cfg.Sentiment.Lexicon["商誉减值"])
	assert.Len(t, cfg.Schedule.Watchlist, 3)
}
