package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"AShareSentinel/internal/breadth"
	"AShareSentinel/internal/cache"
	"AShareSentinel/internal/calculator"
	"AShareSentinel/internal/config"
	"AShareSentinel/internal/metrics"
	"AShareSentinel/internal/model"
	"AShareSentinel/internal/reconciler"
	"AShareSentinel/internal/sentiment"
)

// Collector is the query engine. It fans each query out to every provider
// with the needed capability, waits for all of them, and reconciles.
// A Collector is safe for concurrent use; queries share no mutable state
// apart from the optional cache and the metrics collectors.
type Collector struct {
	providers []Fetcher

	providerTimeout time.Duration
	maxAttempts     int
	backoff         time.Duration
	lookback        int
	newsLimit       int

	reconcile  reconciler.Options
	params     calculator.Params
	thresholds breadth.Thresholds
	classifier *sentiment.Classifier

	cache    cache.Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

// Option customizes a Collector.
type Option func(*Collector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

// WithSeriesCache caches fetched price series and float shares for ttl.
func WithSeriesCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Collector) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// New builds a Collector. providers must be in reconciliation priority order.
func New(cfg *config.Config, providers []Fetcher, opts ...Option) (*Collector, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if len(providers) == 0 {
		return nil, errors.New("no providers configured")
	}
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate provider %q", p.Name())
		}
		seen[p.Name()] = true
	}

	c := &Collector{
		providers:       append([]Fetcher(nil), providers...),
		providerTimeout: cfg.HTTP.ProviderTimeout,
		maxAttempts:     cfg.Retry.MaxAttempts,
		backoff:         cfg.Retry.Backoff,
		lookback:        cfg.Indicators.Lookback,
		newsLimit:       cfg.Sentiment.NewsLimit,
		reconcile: reconciler.Options{
			StaleAfter: cfg.Reconcile.StaleAfter,
			Epsilon:    cfg.Reconcile.Epsilon,
		},
		params: calculator.Params{
			MAPeriods:   append([]int(nil), cfg.Indicators.MAPeriods...),
			RSIPeriod:   cfg.Indicators.RSIPeriod,
			MACDFast:    cfg.Indicators.MACDFast,
			MACDSlow:    cfg.Indicators.MACDSlow,
			MACDSignal:  cfg.Indicators.MACDSignal,
			VolumeRatio: cfg.Indicators.VolumeRatioWindow,
			RangeWindow: cfg.Indicators.RangeWindow,
		},
		thresholds: breadth.Thresholds{
			BullishRatio: cfg.Breadth.BullishRatio,
			BearishRatio: cfg.Breadth.BearishRatio,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.providerTimeout <= 0 {
		c.providerTimeout = 5 * time.Second
	}
	c.classifier = sentiment.New(sentiment.Config{
		TitleWeight: cfg.Sentiment.TitleWeight,
		Threshold:   cfg.Sentiment.Threshold,
		MinRunes:    cfg.Sentiment.MinRunes,
		Lexicon:     cfg.Sentiment.Lexicon,
	}, c.log)
	return c, nil
}

// Providers returns the provider names in priority order.
func (c *Collector) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// outcome is one provider's answer within a fan-out.
type outcome[T any] struct {
	provider string
	value    T
	err      error
}

// capable returns the providers implementing F, in priority order.
func capable[F Fetcher](providers []Fetcher) []F {
	out := make([]F, 0, len(providers))
	for _, p := range providers {
		if f, ok := p.(F); ok {
			out = append(out, f)
		}
	}
	return out
}

// fanOut calls fn on every provider implementing F concurrently and waits for
// all of them. Results keep priority order. Workers never return errors, so
// one provider failing cannot cancel its siblings.
func fanOut[F Fetcher, T any](ctx context.Context, c *Collector, op string, fn func(context.Context, F) (T, error)) []outcome[T] {
	targets := capable[F](c.providers)
	out := make([]outcome[T], len(targets))
	var g errgroup.Group
	for i, f := range targets {
		g.Go(func() error {
			v, err := callWithRetry(ctx, c, f.Name(), op, func(ctx context.Context) (T, error) {
				return fn(ctx, f)
			})
			out[i] = outcome[T]{provider: f.Name(), value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// callWithRetry runs fn under a per-attempt timeout, retrying transient
// failures with exponential backoff.
func callWithRetry[T any](ctx context.Context, c *Collector, provider, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := c.backoff << (attempt - 2)
			c.log.Debug().Str("provider", provider).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Err(lastErr).Msg("retrying")
			if err := sleep(ctx, wait); err != nil {
				return zero, lastErr
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.providerTimeout)
		started := time.Now()
		v, err := fn(callCtx)
		cancel()
		metrics.ObserveProvider(provider, op, started, err)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil || !transient(err) {
			break
		}
	}
	return zero, lastErr
}

func transient(err error) bool {
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// provenance summarizes a fan-out.
func provenance[T any](op string, results []outcome[T]) model.Provenance {
	p := model.Provenance{
		Sources:   []string{},
		Attempted: make([]string, 0, len(results)),
	}
	for _, r := range results {
		p.Attempted = append(p.Attempted, r.provider)
		if r.err != nil {
			p.Failures = append(p.Failures, model.FailureFrom(r.provider, op, r.err))
			continue
		}
		p.Sources = append(p.Sources, r.provider)
	}
	return p
}

// firstSuccess returns the highest-priority successful outcome.
func firstSuccess[T any](results []outcome[T]) (outcome[T], bool) {
	for _, r := range results {
		if r.err == nil {
			return r, true
		}
	}
	return outcome[T]{}, false
}

// logFailures reports each failed provider call at warn level.
func logFailures[T any](log zerolog.Logger, op string, results []outcome[T]) {
	for _, r := range results {
		if r.err != nil {
			log.Warn().Str("provider", r.provider).Str("op", op).Err(r.err).Msg("provider failed")
		}
	}
}

// queryErr builds the single error a query returns and records it.
func (c *Collector) queryErr(log zerolog.Logger, op, symbol string, attempted []string, err error) error {
	metrics.ObserveQuery(op, err)
	log.Error().Err(err).Strs("attempted", attempted).Msg("query failed")
	return &model.QueryError{Op: op, Symbol: symbol, Attempted: attempted, Err: err}
}

// afterBarrier discards partial results when the caller gave up meanwhile.
func afterBarrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("query abandoned: %w", err)
	}
	return nil
}

// fanOutAll runs independent query parts concurrently and waits for all.
func fanOutAll(parts ...func()) {
	var g errgroup.Group
	for _, part := range parts {
		g.Go(func() error {
			part()
			return nil
		})
	}
	_ = g.Wait()
}
