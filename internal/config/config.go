// Package config defines the root Config value constructed once at startup
// and passed down to every component. No process-wide mutable singletons.
package config

import "time"

// Venue driver identifiers, selecting which concrete venue.Client /
// venue.Normalizer pair a VenueConfig wires up. New drivers are added here
// as new venue packages are added under internal/venue; config itself stays
// ignorant of their implementations to avoid an import cycle.
const (
	DriverSingleBook = "singlebook"
	DriverDuoBook    = "duobook"
)

// Config is the root configuration for a harvester instance. Both the
// Discovery and Polling processes read the same file.
type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Backoff   BackoffConfig   `yaml:"backoff"`
	Writer    WriterConfig    `yaml:"writer"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Venues    []VenueConfig   `yaml:"venues"`
}

// DiscoveryConfig controls the discovery loop's cadence.
type DiscoveryConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// SnapshotConfig controls how often the poller re-reads the snapshot file.
type SnapshotConfig struct {
	ReadInterval time.Duration `yaml:"read_interval"`
}

// SchedulerConfig controls the venue scheduler's tick cadence and shutdown behavior.
type SchedulerConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// BackoffConfig holds the per-instrument exponential backoff parameters.
type BackoffConfig struct {
	Base       time.Duration `yaml:"base"`
	Cap        time.Duration `yaml:"cap"`
	JitterFrac float64       `yaml:"jitter_frac"`
}

// WriterConfig controls the rotating JSONL writer.
type WriterConfig struct {
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	FsyncRecords  int           `yaml:"fsync_records"`
}

// TelemetryConfig controls PollError sampling.
type TelemetryConfig struct {
	ErrorSampleRate   float64 `yaml:"error_sample_rate"`
	ErrorSampleCapPerS int    `yaml:"error_sample_cap_per_s"`
	MetricsAddr       string  `yaml:"metrics_addr"`
}

// VenueConfig bundles a venue's static runtime knobs: worker pool size,
// AIMD ceiling/thresholds, request timeout, and venue-specific discovery
// rules. DiscoveryRules is opaque to the core; only the venue client
// interprets it.
type VenueConfig struct {
	Name           string         `yaml:"name"`
	Driver         string         `yaml:"driver"`
	BaseURL        string         `yaml:"base_url"`
	MaxWorkers     int            `yaml:"max_workers"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	AIMD           AIMDConfig     `yaml:"aimd"`
	DiscoveryRules map[string]any `yaml:"discovery_rules"`

	// HintsURL is an optional push-invalidation WebSocket endpoint. Empty
	// disables the hint channel entirely; the driver falls back to polling
	// purely on its backoff schedule. Only drivers implementing
	// venue.HintSource use this field.
	HintsURL string `yaml:"hints_url,omitempty"`
}

// AIMDConfig holds the per-venue AIMD thresholds. Ceilings and thresholds
// are plain configuration, never derived.
type AIMDConfig struct {
	Ceiling           int           `yaml:"ceiling"`
	HighFail          float64       `yaml:"high_fail"`
	HighLatencyMs     int64         `yaml:"high_latency_ms"`
	StableSeconds     time.Duration `yaml:"stable_seconds"`
	LowLatencyMs      int64         `yaml:"low_latency_ms"`
	MinAdjustInterval time.Duration `yaml:"min_adjust_interval"`
	CooldownOn429     time.Duration `yaml:"cooldown_on_429"`
}

// VenueByName returns the configuration for the named venue, or false if absent.
func (c Config) VenueByName(name string) (VenueConfig, bool) {
	for _, v := range c.Venues {
		if v.Name == name {
			return v, true
		}
	}
	return VenueConfig{}, false
}
