package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDiscoveryInterval = 60 * time.Second
	DefaultSnapshotReadInterval = 1 * time.Second
	DefaultTickInterval  = 1 * time.Second
	DefaultStatsInterval = 10 * time.Second
	DefaultShutdownGrace = 5 * time.Second

	DefaultBackoffBase       = 1 * time.Second
	DefaultBackoffCap        = 300 * time.Second
	DefaultBackoffJitterFrac = 0.25

	DefaultFsyncInterval = 1 * time.Second
	DefaultFsyncRecords  = 256

	DefaultErrorSampleRate    = 1.0
	DefaultErrorSampleCapPerS = 50
	DefaultMetricsAddr        = ":9090"

	DefaultMaxWorkers     = 16
	DefaultRequestTimeout = 5 * time.Second

	DefaultAIMDCeiling           = 16
	DefaultAIMDHighFail          = 0.5
	DefaultAIMDHighLatencyMs     = 2000
	DefaultAIMDStableSeconds     = 60 * time.Second
	DefaultAIMDLowLatencyMs      = 500
	DefaultAIMDMinAdjustInterval = 30 * time.Second
	DefaultAIMDCooldownOn429     = 30 * time.Second
)

// DefaultConfig returns a Config with every optional field populated.
// Venues must still be supplied by the caller; there is no sensible default
// venue list.
func DefaultConfig() Config {
	return Config{
		Discovery: DiscoveryConfig{Interval: DefaultDiscoveryInterval},
		Snapshot:  SnapshotConfig{ReadInterval: DefaultSnapshotReadInterval},
		Scheduler: SchedulerConfig{
			TickInterval:  DefaultTickInterval,
			StatsInterval: DefaultStatsInterval,
			ShutdownGrace: DefaultShutdownGrace,
		},
		Backoff: BackoffConfig{
			Base:       DefaultBackoffBase,
			Cap:        DefaultBackoffCap,
			JitterFrac: DefaultBackoffJitterFrac,
		},
		Writer: WriterConfig{
			FsyncInterval: DefaultFsyncInterval,
			FsyncRecords:  DefaultFsyncRecords,
		},
		Telemetry: TelemetryConfig{
			ErrorSampleRate:    DefaultErrorSampleRate,
			ErrorSampleCapPerS: DefaultErrorSampleCapPerS,
			MetricsAddr:        DefaultMetricsAddr,
		},
	}
}

// applyDefaults fills zero-valued optional fields after a YAML load.
func (c *Config) applyDefaults() {
	if c.Discovery.Interval == 0 {
		c.Discovery.Interval = DefaultDiscoveryInterval
	}
	if c.Snapshot.ReadInterval == 0 {
		c.Snapshot.ReadInterval = DefaultSnapshotReadInterval
	}
	if c.Scheduler.TickInterval == 0 {
		c.Scheduler.TickInterval = DefaultTickInterval
	}
	if c.Scheduler.StatsInterval == 0 {
		c.Scheduler.StatsInterval = DefaultStatsInterval
	}
	if c.Scheduler.ShutdownGrace == 0 {
		c.Scheduler.ShutdownGrace = DefaultShutdownGrace
	}
	if c.Backoff.Base == 0 {
		c.Backoff.Base = DefaultBackoffBase
	}
	if c.Backoff.Cap == 0 {
		c.Backoff.Cap = DefaultBackoffCap
	}
	if c.Backoff.JitterFrac == 0 {
		c.Backoff.JitterFrac = DefaultBackoffJitterFrac
	}
	if c.Writer.FsyncInterval == 0 {
		c.Writer.FsyncInterval = DefaultFsyncInterval
	}
	if c.Writer.FsyncRecords == 0 {
		c.Writer.FsyncRecords = DefaultFsyncRecords
	}
	if c.Telemetry.ErrorSampleRate == 0 {
		c.Telemetry.ErrorSampleRate = DefaultErrorSampleRate
	}
	if c.Telemetry.ErrorSampleCapPerS == 0 {
		c.Telemetry.ErrorSampleCapPerS = DefaultErrorSampleCapPerS
	}
	if c.Telemetry.MetricsAddr == "" {
		c.Telemetry.MetricsAddr = DefaultMetricsAddr
	}

	for i := range c.Venues {
		applyVenueDefaults(&c.Venues[i])
	}
}

func applyVenueDefaults(v *VenueConfig) {
	if v.MaxWorkers == 0 {
		v.MaxWorkers = DefaultMaxWorkers
	}
	if v.RequestTimeout == 0 {
		v.RequestTimeout = DefaultRequestTimeout
	}
	if v.AIMD.Ceiling == 0 {
		v.AIMD.Ceiling = DefaultAIMDCeiling
	}
	if v.AIMD.HighFail == 0 {
		v.AIMD.HighFail = DefaultAIMDHighFail
	}
	if v.AIMD.HighLatencyMs == 0 {
		v.AIMD.HighLatencyMs = DefaultAIMDHighLatencyMs
	}
	if v.AIMD.StableSeconds == 0 {
		v.AIMD.StableSeconds = DefaultAIMDStableSeconds
	}
	if v.AIMD.LowLatencyMs == 0 {
		v.AIMD.LowLatencyMs = DefaultAIMDLowLatencyMs
	}
	if v.AIMD.MinAdjustInterval == 0 {
		v.AIMD.MinAdjustInterval = DefaultAIMDMinAdjustInterval
	}
	if v.AIMD.CooldownOn429 == 0 {
		v.AIMD.CooldownOn429 = DefaultAIMDCooldownOn429
	}
}
