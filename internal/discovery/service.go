package discovery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/snapshot"
	"github.com/rickgao/marketdata-harvester/internal/venue"
)

// Service runs the discovery loop for exactly one venue. Venues are fully
// independent; a Service owns no state shared with any other venue's
// Service.
type Service struct {
	runtime       venue.Runtime
	interval      time.Duration
	snapshotRoot  string
	marketsWriter *logwriter.Writer
	logger        *slog.Logger

	seq      uint64
	last     model.ActiveSet
	haveLast bool
}

// New returns a Service for one venue.
func New(rt venue.Runtime, cfg config.DiscoveryConfig, snapshotRoot string, marketsWriter *logwriter.Writer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runtime:       rt,
		interval:      cfg.Interval,
		snapshotRoot:  snapshotRoot,
		marketsWriter: marketsWriter,
		logger:        logger,
	}
}

// Run blocks, invoking RunOnce on a fixed cadence until ctx is canceled. A
// failed cycle is logged and never terminates the loop; the next attempt runs
// at the regular interval, with no added delay.
func (s *Service) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single discovery cycle: discover, build a fresh
// ActiveSet, diff against the last one this process wrote, append
// MarketRecords for anything added or changed, then atomically publish the
// snapshot regardless of whether anything changed.
func (s *Service) RunOnce(ctx context.Context) {
	nowMs := time.Now().UnixMilli()

	instruments, err := s.runtime.Client.Discover(ctx, s.runtime.Config.DiscoveryRules)
	if err != nil {
		s.logger.Warn("discovery failed", "venue", s.runtime.Name, "error", err)
		return
	}

	fresh := model.NewActiveSet(s.runtime.Name, nowMs, instruments)
	s.seq++
	fresh.Seq = s.seq

	changed := s.diff(fresh)
	for _, inst := range changed {
		rec := model.NewMarketRecord(inst)
		if err := s.marketsWriter.WriteRecord(nowMs, rec); err != nil {
			s.logger.Error("markets log write failed", "venue", s.runtime.Name, "error", err)
		}
	}
	// RunOnce only runs once per discovery interval (default 60s), far
	// longer than fsync_interval. WriteRecord's own interval check would
	// otherwise leave a written record buffered until the next cycle.
	if err := s.marketsWriter.MaybeFlush(); err != nil {
		s.logger.Error("periodic flush failed", "venue", s.runtime.Name, "error", err)
	}

	if err := snapshot.Write(s.snapshotRoot, fresh); err != nil {
		s.logger.Error("snapshot write failed", "venue", s.runtime.Name, "error", err)
		return
	}

	s.last = fresh
	s.haveLast = true
	s.logger.Info("discovery cycle complete",
		"venue", s.runtime.Name, "count", fresh.Count, "changed", len(changed), "seq", fresh.Seq)
}

// diff returns, in stable key order, every instrument in fresh that is new
// or whose fields differ from the last ActiveSet this process wrote.
// Removals are never reported explicitly; a later snapshot's absence is how
// a reader infers them.
func (s *Service) diff(fresh model.ActiveSet) []model.Instrument {
	keys := make([]string, 0, len(fresh.Instruments))
	for k := range fresh.Instruments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var changed []model.Instrument
	for _, key := range keys {
		inst := fresh.Instruments[key]
		if !s.haveLast {
			changed = append(changed, inst)
			continue
		}
		prev, ok := s.last.Instruments[key]
		if !ok || !prev.Equal(inst) {
			changed = append(changed, inst)
		}
	}
	return changed
}
