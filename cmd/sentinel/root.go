package main

import (
	"context"
	"fmt"
	"os"

	"DrawdownSentinel/internal/advisor"
	"DrawdownSentinel/internal/ammo"
	"DrawdownSentinel/internal/collector"
	"DrawdownSentinel/internal/config"
	"DrawdownSentinel/internal/logger"
	"DrawdownSentinel/internal/metrics"
	"DrawdownSentinel/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Drawdown-triggered capital deployment advisor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "path to the YAML config file")

	root.AddCommand(
		serveCmd(&cfgPath),
		marketCmd(&cfgPath),
		evaluateCmd(&cfgPath),
		resetAmmoCmd(&cfgPath),
	)
	return root
}

// app is the wired object graph shared by every command.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Registry
	store     *store.Store
	collector *collector.Collector
	ammo      *ammo.Manager
	advisor   *advisor.Service
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	reg := metrics.New()

	st, err := store.Open(ctx, store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher := newFetcher(cfg)
	log.Info().Str("provider", fetcher.Name()).Str("benchmark", cfg.DataSource.Benchmark).Msg("data source ready")

	col := collector.NewCollector(fetcher, collector.Options{
		RequestsPerMinute: cfg.DataSource.RequestsPerMinute,
		CacheTTL:          cfg.DataSource.CacheTTL,
		Metrics:           reg,
		Logger:            log,
	})
	am := ammo.NewManager(st, reg, log)
	svc := advisor.NewService(st, col, am, advisor.Options{
		Defaults:  cfg.Defaults,
		Benchmark: cfg.DataSource.Benchmark,
		Metrics:   reg,
		Logger:    log,
	})

	return &app{
		cfg:       cfg,
		log:       log,
		metrics:   reg,
		store:     st,
		collector: col,
		ammo:      am,
		advisor:   svc,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "twelvedata":
		return collector.NewTwelveDataFetcher(cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		return &collector.MockFetcher{Price: 450}
	default:
		return collector.NewYahooFetcher(cfg.Proxy)
	}
}
