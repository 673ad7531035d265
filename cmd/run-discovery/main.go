// run-discovery is the Discovery process: one goroutine per configured
// venue, each periodically calling venue.Discover, diffing the result
// against its own last snapshot, and atomically publishing the ActiveSet
// the Polling process reads.
//
// OUTPUT_DIR (absolute path) is the sole required environment variable.
// Every other knob is compiled-in configuration, optionally overridden by
// an -config YAML file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/discovery"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/venue"
	"github.com/rickgao/marketdata-harvester/internal/venue/duobook"
	"github.com/rickgao/marketdata-harvester/internal/venue/singlebook"
	"github.com/rickgao/marketdata-harvester/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML file; compiled-in defaults are used if omitted")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		logger.Error("OUTPUT_DIR environment variable is required")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("starting run-discovery",
		"version", version.Version, "commit", version.Commit,
		"output_dir", outputDir, "venues", len(cfg.Venues))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, vc := range cfg.Venues {
		vc := vc
		rt, err := buildRuntime(vc)
		if err != nil {
			logger.Error("failed to build venue runtime", "venue", vc.Name, "error", err)
			os.Exit(1)
		}

		venueLogger := logger.With("venue", vc.Name)
		marketsWriter := logwriter.New(outputDir, vc.Name, logwriter.StreamMarkets,
			cfg.Writer.FsyncInterval, cfg.Writer.FsyncRecords, venueLogger)

		svc := discovery.New(rt, cfg.Discovery, outputDir, marketsWriter, venueLogger)

		group.Go(func() error {
			svc.Run(groupCtx)
			if err := marketsWriter.Close(); err != nil {
				venueLogger.Error("markets writer close failed", "error", err)
			}
			return nil
		})
	}

	// Run blocks every venue's goroutine until ctx is canceled (no venue
	// loop returns on its own); Wait only returns once the shutdown signal
	// has propagated to all of them. Venues are fully independent;
	// cancellation is the only thing they share.
	if err := group.Wait(); err != nil {
		logger.Error("discovery exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("run-discovery stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		cfg.Venues = defaultVenues()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate compiled-in default config: %w", err)
		}
		return &cfg, nil
	}
	return config.LoadAndValidate(path)
}

// defaultVenues is the compiled-in venue list used when no -config file is
// given: one single-book CLOB venue and one dual-book YES/NO CLOB venue.
func defaultVenues() []config.VenueConfig {
	return []config.VenueConfig{
		{
			Name:       "kalshi",
			Driver:     config.DriverSingleBook,
			BaseURL:    "https://trading-api.kalshi.com/trade-api/v2",
			MaxWorkers: config.DefaultMaxWorkers,
			AIMD: config.AIMDConfig{
				Ceiling: config.DefaultAIMDCeiling, HighFail: config.DefaultAIMDHighFail,
				HighLatencyMs: config.DefaultAIMDHighLatencyMs, StableSeconds: config.DefaultAIMDStableSeconds,
				LowLatencyMs: config.DefaultAIMDLowLatencyMs, MinAdjustInterval: config.DefaultAIMDMinAdjustInterval,
				CooldownOn429: config.DefaultAIMDCooldownOn429,
			},
		},
		{
			Name:       "polymarket",
			Driver:     config.DriverDuoBook,
			BaseURL:    "https://clob.polymarket.com",
			MaxWorkers: 4,
			AIMD: config.AIMDConfig{
				Ceiling: 4, HighFail: config.DefaultAIMDHighFail,
				HighLatencyMs: config.DefaultAIMDHighLatencyMs, StableSeconds: config.DefaultAIMDStableSeconds,
				LowLatencyMs: config.DefaultAIMDLowLatencyMs, MinAdjustInterval: config.DefaultAIMDMinAdjustInterval,
				CooldownOn429: config.DefaultAIMDCooldownOn429,
			},
		},
	}
}

// buildRuntime resolves a VenueConfig's driver into a concrete venue.Client
// and venue.Normalizer pair. These are the only venue-specific seams.
func buildRuntime(vc config.VenueConfig) (venue.Runtime, error) {
	timeout := vc.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	switch vc.Driver {
	case config.DriverSingleBook:
		return venue.Runtime{
			Name:       vc.Name,
			Client:     singlebook.New(vc.Name, vc.BaseURL, timeout, nil),
			Normalizer: singlebook.Normalizer{},
			Config:     vc,
		}, nil
	case config.DriverDuoBook:
		return venue.Runtime{
			Name:       vc.Name,
			Client:     duobook.New(vc.Name, vc.BaseURL, timeout, nil),
			Normalizer: duobook.Normalizer{},
			Config:     vc,
		}, nil
	default:
		return venue.Runtime{}, fmt.Errorf("unknown venue driver %q for venue %q", vc.Driver, vc.Name)
	}
}
