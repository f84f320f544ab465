package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Known provider names, in the default priority order.
const (
	ProviderSina      = "sina"
	ProviderTencent   = "tencent"
	ProviderEastmoney = "eastmoney"
	ProviderMock      = "mock"
)

// Config holds all application configuration. It is not modified after Load.
type Config struct {
	// Providers is the reconciliation priority order, highest first.
	Providers []string `yaml:"providers" default:"[\"sina\",\"tencent\",\"eastmoney\"]" validate:"required,min=1,unique,dive,oneof=sina tencent eastmoney mock"`
	Proxy     string   `yaml:"proxy"`

	HTTP struct {
		Timeout         time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
		ProviderTimeout time.Duration `yaml:"provider_timeout" default:"5s" validate:"gt=0"`
		UserAgent       string        `yaml:"user_agent" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"32" validate:"gte=1"`
	} `yaml:"http"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"2" validate:"gte=1,lte=5"`
		Backoff     time.Duration `yaml:"backoff" default:"200ms" validate:"gte=0"`
	} `yaml:"retry"`

	Reconcile struct {
		StaleAfter time.Duration `yaml:"stale_after" default:"5m" validate:"gte=0"`
		Epsilon    float64       `yaml:"epsilon" default:"0.01" validate:"gte=0"`
	} `yaml:"reconcile"`

	Indicators struct {
		Lookback          int   `yaml:"lookback" default:"120" validate:"gte=1,lte=1000"`
		MAPeriods         []int `yaml:"ma_periods" default:"[5,10,20,60]" validate:"required,unique,dive,oneof=5 10 20 60"`
		RSIPeriod         int   `yaml:"rsi_period" default:"14" validate:"gte=2"`
		MACDFast          int   `yaml:"macd_fast" default:"12" validate:"gte=1"`
		MACDSlow          int   `yaml:"macd_slow" default:"26" validate:"gtfield=MACDFast"`
		MACDSignal        int   `yaml:"macd_signal" default:"9" validate:"gte=1"`
		VolumeRatioWindow int   `yaml:"volume_ratio_window" default:"5" validate:"gte=1"`
		RangeWindow       int   `yaml:"range_window" default:"60" validate:"gte=1"`
	} `yaml:"indicators"`

	Sentiment struct {
		TitleWeight float64            `yaml:"title_weight" default:"2" validate:"gt=0"`
		Threshold   float64            `yaml:"threshold" default:"1" validate:"gt=0"`
		MinRunes    int                `yaml:"min_runes" default:"4" validate:"gte=0"`
		NewsLimit   int                `yaml:"news_limit" default:"20" validate:"gte=1,lte=100"`
		Lexicon     map[string]float64 `yaml:"lexicon"`
	} `yaml:"sentiment"`

	Breadth struct {
		BullishRatio float64 `yaml:"bullish_ratio" default:"1.5" validate:"gt=0"`
		BearishRatio float64 `yaml:"bearish_ratio" default:"0.67" validate:"gt=0,ltfield=BullishRatio"`
	} `yaml:"breadth"`

	Cache struct {
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis none"`
		SeriesTTL  time.Duration `yaml:"series_ttl" default:"10m" validate:"gte=0"`
		MaxEntries int           `yaml:"max_entries" default:"1000" validate:"gte=1"`
		Redis      struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" validate:"gte=0"`
			Prefix   string `yaml:"prefix" default:"sentinel"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Addr    string `yaml:"addr" default:":9102"`
	} `yaml:"metrics"`

	Schedule struct {
		Enabled    bool     `yaml:"enabled"`
		WarmupCron string   `yaml:"warmup_cron" default:"0 */5 9-15 * * 1-5"`
		MarketCron string   `yaml:"market_cron" default:"0 */1 9-15 * * 1-5"`
		Watchlist  []string `yaml:"watchlist"`
	} `yaml:"schedule"`
}

// Load applies defaults, reads config from a YAML file if it exists, then
// applies environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SENTINEL_PROVIDERS"); v != "" {
		cfg.Providers = splitList(v)
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("SENTINEL_WATCHLIST"); v != "" {
		cfg.Schedule.Watchlist = splitList(v)
		cfg.Schedule.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if c.Indicators.MACDSlow+c.Indicators.MACDSignal > c.Indicators.Lookback {
		return fmt.Errorf("indicators.lookback must cover macd_slow+macd_signal (%d)", c.Indicators.MACDSlow+c.Indicators.MACDSignal)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis backend")
	}
	if c.Schedule.Enabled && c.Schedule.WarmupCron == "" {
		return fmt.Errorf("schedule.warmup_cron is required when the schedule is enabled")
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
