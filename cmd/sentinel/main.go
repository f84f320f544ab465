package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"AShareSentinel/internal/cache"
	"AShareSentinel/internal/collector"
	"AShareSentinel/internal/config"
	"AShareSentinel/internal/logger"
	"AShareSentinel/internal/metrics"
	"AShareSentinel/internal/scheduler"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	log, logCloser, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("init logger")
	}
	defer logCloser.Close()
	log.Info().Strs("providers", cfg.Providers).Msg("AShareSentinel starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("metrics server")
			}
		}()
	}

	// Providers share one pooled client
	client, err := collector.NewHTTPClient(collector.HTTPOptions{
		Timeout:      cfg.HTTP.Timeout,
		Proxy:        cfg.Proxy,
		MaxIdleConns: cfg.HTTP.MaxIdleConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init http client")
	}
	providers, err := collector.NewProviders(cfg, client)
	if err != nil {
		log.Fatal().Err(err).Msg("init providers")
	}

	opts := []collector.Option{collector.WithLogger(log)}
	switch cfg.Cache.Backend {
	case "memory":
		mc := cache.NewMemoryCache(time.Minute, cache.WithMaxSize(cfg.Cache.MaxEntries))
		defer mc.Close()
		opts = append(opts, collector.WithSeriesCache(mc, cfg.Cache.SeriesTTL))
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, running without series cache")
		} else {
			defer rc.Close()
			opts = append(opts, collector.WithSeriesCache(rc, cfg.Cache.SeriesTTL))
		}
	}

	col, err := collector.New(cfg, providers, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("init collector")
	}

	// Scheduler
	if cfg.Schedule.Enabled {
		sched := scheduler.NewScheduler(ctx, col, cfg.Schedule.Watchlist, log)
		if err := sched.RegisterAll(cfg.Schedule.WarmupCron, cfg.Schedule.MarketCron); err != nil {
			log.Fatal().Err(err).Msg("register cron tasks")
		}
		sched.Start()
		defer sched.Stop()

		if os.Getenv("RUN_ON_START") == "true" {
			log.Info().Msg("RUN_ON_START enabled, warming now")
			go sched.RunNow()
		}
	}

	log.Info().Msg("AShareSentinel is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping...")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info().Msg("AShareSentinel stopped")
}
