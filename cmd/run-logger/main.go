// run-logger is the Polling process: one Scheduler goroutine per configured
// venue, each reading the venue's snapshot, dispatching bounded fetches,
// and appending orderbook/poll_stats/poll_errors records.
//
// OUTPUT_DIR (absolute path) is the sole required environment variable.
// Every other knob is compiled-in configuration, optionally overridden by
// an -config YAML file. A Prometheus /metrics endpoint and a /health
// endpoint are exposed on telemetry.metrics_addr (default :9090).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketdata-harvester/internal/aimd"
	"github.com/rickgao/marketdata-harvester/internal/backoff"
	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/scheduler"
	"github.com/rickgao/marketdata-harvester/internal/telemetry"
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

	logger.Info("starting run-logger",
		"version", version.Version, "commit", version.Commit,
		"output_dir", outputDir, "venues", len(cfg.Venues))

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	schedulers := make([]*scheduler.Scheduler, 0, len(cfg.Venues))
	group, groupCtx := errgroup.WithContext(ctx)

	for _, vc := range cfg.Venues {
		vc := vc
		rt, err := buildRuntime(vc)
		if err != nil {
			logger.Error("failed to build venue runtime", "venue", vc.Name, "error", err)
			os.Exit(1)
		}

		venueLogger := logger.With("venue", vc.Name)
		if dc, ok := rt.Client.(*duobook.Client); ok && vc.HintsURL != "" {
			go func() {
				if err := dc.ConnectHints(groupCtx, vc.HintsURL, venueLogger); err != nil {
					venueLogger.Warn("hint connection failed, continuing on REST polling alone", "error", err)
				}
			}()
		}

		obWriter := logwriter.New(outputDir, vc.Name, logwriter.StreamOrderbooks,
			cfg.Writer.FsyncInterval, cfg.Writer.FsyncRecords, venueLogger)
		statsWriter := logwriter.New(outputDir, vc.Name, logwriter.StreamPollStats,
			cfg.Writer.FsyncInterval, cfg.Writer.FsyncRecords, venueLogger)
		errWriter := logwriter.New(outputDir, vc.Name, logwriter.StreamPollErrors,
			cfg.Writer.FsyncInterval, cfg.Writer.FsyncRecords, venueLogger)

		sched := scheduler.New(rt, cfg.Scheduler, backoff.Params{
			Base: cfg.Backoff.Base, Cap: cfg.Backoff.Cap, JitterFrac: cfg.Backoff.JitterFrac,
		}, aimd.Params{
			Ceiling: vc.AIMD.Ceiling, HighFail: vc.AIMD.HighFail, HighLatencyMs: vc.AIMD.HighLatencyMs,
			StableSeconds: vc.AIMD.StableSeconds, LowLatencyMs: vc.AIMD.LowLatencyMs,
			MinAdjustInterval: vc.AIMD.MinAdjustInterval, CooldownOn429: vc.AIMD.CooldownOn429,
		}, outputDir, obWriter, statsWriter, errWriter, cfg.Telemetry, venueLogger)
		sched.SetStatsObserver(metrics)
		schedulers = append(schedulers, sched)

		group.Go(func() error {
			sched.Run(groupCtx)
			return nil
		})
	}

	healthServer := &http.Server{
		Addr:    cfg.Telemetry.MetricsAddr,
		Handler: buildMux(registry, schedulers),
	}
	go func() {
		logger.Info("starting telemetry server", "addr", cfg.Telemetry.MetricsAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("telemetry server error", "error", err)
		}
	}()

	if err := group.Wait(); err != nil {
		logger.Error("run-logger exited with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry server shutdown failed", "error", err)
	}
	logger.Info("run-logger stopped")
}

// buildMux wires /metrics (Prometheus) and /health (per-venue scheduler
// liveness) onto one mux.
func buildMux(registry *prometheus.Registry, schedulers []*scheduler.Scheduler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(registry))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status string                  `json:"status"`
			Venues map[string]model.PollStats `json:"venues"`
		}{
			Status: "healthy",
			Venues: make(map[string]model.PollStats, len(schedulers)),
		}

		for _, s := range schedulers {
			st := s.Status()
			health.Venues[st.Venue] = st
			if st.CooldownRemainMs > 0 {
				health.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(health)
	})

	return mux
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
