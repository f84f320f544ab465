// Package scheduler keeps the series cache warm by querying the watchlist and
// the market overview on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"AShareSentinel/internal/collector"
)

// RSI levels that get a log line during warm-up.
const (
	oversoldRSI   = 30
	overboughtRSI = 85
)

// Querier is the part of the collector the jobs use.
type Querier interface {
	GetTechnicalIndicators(ctx context.Context, symbol string) (collector.IndicatorsResult, error)
	GetMarketOverview(ctx context.Context, includeMoneyFlow bool) (collector.MarketResult, error)
}

// Scheduler manages the warm-up cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Querier    Querier
	Watchlist  []string
	JobTimeout time.Duration
	Ctx        context.Context

	log  zerolog.Logger
	runs atomic.Int64
}

// NewScheduler creates a Scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(ctx context.Context, q Querier, watchlist []string, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		Querier:    q,
		Watchlist:  append([]string(nil), watchlist...),
		JobTimeout: 2 * time.Minute,
		Ctx:        ctx,
		log:        log,
	}
}

// RegisterAll registers the watchlist and market warm-up tasks. An empty
// expression leaves that task unscheduled.
func (s *Scheduler) RegisterAll(warmupCron, marketCron string) error {
	if warmupCron != "" && len(s.Watchlist) > 0 {
		if _, err := s.Cron.AddFunc(warmupCron, s.warmWatchlist); err != nil {
			return fmt.Errorf("register warm-up task: %w", err)
		}
	}
	if marketCron != "" {
		if _, err := s.Cron.AddFunc(marketCron, s.marketCheck); err != nil {
			return fmt.Errorf("register market task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Strs("watchlist", s.Watchlist).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow runs both tasks immediately (RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.warmWatchlist()
	s.marketCheck()
}

// Runs returns how many task runs have completed.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

func (s *Scheduler) warmWatchlist() {
	defer s.runs.Add(1)
	ctx, cancel := context.WithTimeout(s.Ctx, s.JobTimeout)
	defer cancel()

	started := time.Now()
	var (
		g      errgroup.Group
		failed atomic.Int64
	)
	g.SetLimit(4)
	for _, symbol := range s.Watchlist {
		g.Go(func() error {
			res, err := s.Querier.GetTechnicalIndicators(ctx, symbol)
			if err != nil {
				failed.Add(1)
				s.log.Error().Err(err).Str("symbol", symbol).Msg("warm-up failed")
				return nil
			}
			s.checkRSI(res)
			return nil
		})
	}
	_ = g.Wait()
	s.log.Info().
		Int("symbols", len(s.Watchlist)).
		Int64("failed", failed.Load()).
		Dur("took", time.Since(started)).
		Msg("watchlist warmed")
}

func (s *Scheduler) checkRSI(res collector.IndicatorsResult) {
	rsi := res.Indicators.RSI
	if rsi == nil {
		return
	}
	switch {
	case *rsi < oversoldRSI:
		s.log.Warn().Str("symbol", res.Symbol.String()).Float64("rsi", *rsi).Msg("oversold")
	case *rsi > overboughtRSI:
		s.log.Warn().Str("symbol", res.Symbol.String()).Float64("rsi", *rsi).Msg("overbought")
	}
}

func (s *Scheduler) marketCheck() {
	defer s.runs.Add(1)
	ctx, cancel := context.WithTimeout(s.Ctx, s.JobTimeout)
	defer cancel()

	res, err := s.Querier.GetMarketOverview(ctx, true)
	if err != nil {
		s.log.Error().Err(err).Msg("market overview failed")
		return
	}
	m := res.Market
	s.log.Info().
		Str("sentiment", string(m.Sentiment)).
		Str("basis", m.Basis).
		Int("rising", m.Rising).
		Int("falling", m.Falling).
		Strs("sources", res.Sources).
		Msg("market overview")
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
