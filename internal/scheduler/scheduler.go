package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/aimd"
	"github.com/rickgao/marketdata-harvester/internal/backoff"
	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/snapshot"
	"github.com/rickgao/marketdata-harvester/internal/venue"
	"github.com/rickgao/marketdata-harvester/internal/workerpool"
)

// fetchResult is the worker-side payload handed back through
// workerpool.Result.Value on a successful fetch; normalization happens on
// the scheduler thread during drain.
type fetchResult struct {
	raw    any
	obTsMs int64
}

// counters accumulates the HTTP-outcome breakdown a PollStats record
// reports as deltas since the last emission.
type counters struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	HTTP4xx   int64
	HTTP5xx   int64
	HTTP429   int64
	Timeouts  int64
}

// Scheduler is the polling core for exactly one venue.
type Scheduler struct {
	runtime venue.Runtime
	cfg     config.SchedulerConfig

	snapshotReader *snapshot.Reader
	backoffTracker *backoff.Tracker
	aimdCtl        *aimd.Controller
	pool           *workerpool.Pool

	obWriter    *logwriter.Writer
	statsWriter *logwriter.Writer
	errWriter   *logwriter.Writer
	errSampler  *errorSampler

	logger *slog.Logger

	statsObserver StatsObserver

	statusMu      sync.Mutex
	lastPollStats model.PollStats

	active      model.ActiveSet
	marketIndex map[string]string // MarketID -> instrument key, rebuilt each tick
	inflight    map[string]model.Instrument
	latencies   *latencyWindow
	statsAcc    counters
	lastStats   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Scheduler for one venue. obWriter, statsWriter, and errWriter
// are owned exclusively by this Scheduler.
func New(
	rt venue.Runtime,
	cfg config.SchedulerConfig,
	backoffParams backoff.Params,
	aimdParams aimd.Params,
	snapshotRoot string,
	obWriter, statsWriter, errWriter *logwriter.Writer,
	telemetry config.TelemetryConfig,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Scheduler{
		runtime:        rt,
		cfg:            cfg,
		snapshotReader: snapshot.NewReader(snapshotRoot, rt.Name),
		backoffTracker: backoff.NewTracker(backoffParams),
		aimdCtl:        aimd.New(aimdParams, now),
		pool:           workerpool.New(rt.Config.MaxWorkers),
		obWriter:       obWriter,
		statsWriter:    statsWriter,
		errWriter:      errWriter,
		errSampler:     newErrorSampler(telemetry.ErrorSampleRate, telemetry.ErrorSampleCapPerS),
		logger:         logger,
		inflight:       make(map[string]model.Instrument),
		latencies:      newLatencyWindow(100),
		lastStats:      now,
	}
}

// Run blocks, ticking at cfg.TickInterval until ctx is canceled. On
// cancellation it stops dispatching, awaits inflight work up to
// cfg.ShutdownGrace, then flushes every writer it owns.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

// Stop cancels the scheduler's run loop. Run returns once shutdown completes.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// StatsObserver receives a copy of every PollStats record this scheduler
// emits, in addition to the poll_stats log line. It exists so a
// process-wide telemetry exporter can mirror the rolling counters without
// the scheduler itself depending on any particular metrics backend.
type StatsObserver interface {
	Observe(model.PollStats)
}

// SetStatsObserver registers o to receive every PollStats record this
// scheduler emits from now on. Not safe to call concurrently with Run.
func (s *Scheduler) SetStatsObserver(o StatsObserver) {
	s.statsObserver = o
}

func (s *Scheduler) shutdown() {
	if !s.pool.Shutdown(s.cfg.ShutdownGrace) {
		s.logger.Warn("shutdown grace elapsed with jobs still inflight", "venue", s.runtime.Name)
	}
	s.drainResults(time.Now())

	for _, w := range []*logwriter.Writer{s.obWriter, s.statsWriter, s.errWriter} {
		if err := w.Close(); err != nil {
			s.logger.Error("writer close failed", "venue", s.runtime.Name, "error", err)
		}
	}
	s.logger.Info("scheduler stopped", "venue", s.runtime.Name)
}

// tick runs one scheduling cycle.
func (s *Scheduler) tick(now time.Time) {
	s.refreshActiveSet()
	s.drainHints()

	tick := counters{}
	inCooldown := s.aimdCtl.InCooldown(now)
	if !inCooldown {
		s.dispatchEligible(now, &tick)
	}

	s.drainResultsInto(now, &tick)

	activeKeys := make(map[string]struct{}, len(s.active.Instruments))
	for k := range s.active.Instruments {
		activeKeys[k] = struct{}{}
	}
	s.backoffTracker.GC(activeKeys)

	p50, p95 := s.latencies.percentiles()
	s.aimdCtl.Observe(now, aimd.TickObservation{
		Attempts:     int(tick.Succeeded + tick.Failed),
		Failures:     int(tick.Failed),
		RateLimited:  int(tick.HTTP429),
		P95LatencyMs: p95,
	})

	s.statsAcc.Submitted += tick.Submitted
	s.statsAcc.Succeeded += tick.Succeeded
	s.statsAcc.Failed += tick.Failed
	s.statsAcc.HTTP4xx += tick.HTTP4xx
	s.statsAcc.HTTP5xx += tick.HTTP5xx
	s.statsAcc.HTTP429 += tick.HTTP429
	s.statsAcc.Timeouts += tick.Timeouts

	if now.Sub(s.lastStats) >= s.cfg.StatsInterval {
		s.emitStats(now, p50, p95)
	}

	for _, w := range []*logwriter.Writer{s.obWriter, s.statsWriter, s.errWriter} {
		if err := w.MaybeFlush(); err != nil {
			s.logger.Error("periodic flush failed", "venue", s.runtime.Name, "error", err)
		}
	}
}

func (s *Scheduler) refreshActiveSet() {
	set, err := s.snapshotReader.Poll()
	if err != nil {
		s.logger.Warn("snapshot read failed", "venue", s.runtime.Name, "error", err)
	}
	s.active = set

	s.marketIndex = make(map[string]string, len(set.Instruments))
	for key, inst := range set.Instruments {
		s.marketIndex[inst.MarketID] = key
	}
}

// drainHints pulls every pending push-invalidation hint from the venue's
// optional HintSource and expedites the matching instrument's backoff
// deadline. A hint only changes when an instrument is next eligible, never
// whether REST is queried. Venues with no HintSource, or no connected hint
// channel, are a no-op here.
func (s *Scheduler) drainHints() {
	hs, ok := s.runtime.Client.(venue.HintSource)
	if !ok {
		return
	}
	hints := hs.Hints()
	if hints == nil {
		return
	}
	for {
		select {
		case marketID, open := <-hints:
			if !open {
				return
			}
			if key, found := s.marketIndex[marketID]; found {
				s.backoffTracker.Expedite(key)
			}
		default:
			return
		}
	}
}

// dispatchEligible builds the eligible queue in deterministic (sorted key)
// order, then dispatches while under both the AIMD-controlled
// inflight_limit and the pool's hard max_workers cap.
func (s *Scheduler) dispatchEligible(now time.Time, tick *counters) {
	keys := make([]string, 0, len(s.active.Instruments))
	for k := range s.active.Instruments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	limit := s.aimdCtl.InflightLimit()
	for _, key := range keys {
		if s.pool.Inflight() >= limit {
			break
		}
		if _, busy := s.inflight[key]; busy {
			continue
		}
		if !s.backoffTracker.Eligible(key, now) {
			continue
		}

		inst := s.active.Instruments[key]
		if !s.pool.Submit(s.ctx, s.buildJob(inst)) {
			break
		}
		s.inflight[key] = inst
		tick.Submitted++
	}
}

func (s *Scheduler) buildJob(inst model.Instrument) workerpool.Job {
	timeout := s.runtime.Config.RequestTimeout
	return workerpool.Job{
		Key: inst.Key(),
		Fetch: func(ctx context.Context) (any, error) {
			fetchCtx := ctx
			var cancel context.CancelFunc
			if timeout > 0 {
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			raw, obTsMs, err := s.runtime.Client.GetOrderbook(fetchCtx, inst.PollKey)
			if err != nil {
				return nil, err
			}
			return fetchResult{raw: raw, obTsMs: obTsMs}, nil
		},
	}
}

func (s *Scheduler) drainResultsInto(now time.Time, tick *counters) {
	for _, r := range s.pool.Drain() {
		inst, ok := s.inflight[r.Key]
		delete(s.inflight, r.Key)
		if !ok {
			continue
		}
		s.processResult(now, inst, r, tick)
	}
}

func (s *Scheduler) drainResults(now time.Time) {
	s.drainResultsInto(now, &counters{})
}

func (s *Scheduler) processResult(now time.Time, inst model.Instrument, r workerpool.Result, tick *counters) {
	key := inst.Key()

	if r.Err == nil {
		fr, ok := r.Value.(fetchResult)
		if !ok {
			s.handleFailure(now, inst, r, &venue.FetchError{Kind: venue.KindParse, Err: errors.New("unexpected fetch result type")}, tick)
			return
		}
		rec, nerr := s.runtime.Normalizer.Normalize(fr.raw, s.runtime.Name, inst.PollKey, r.StartedAt.UnixMilli(), fr.obTsMs)
		if nerr != nil {
			s.handleFailure(now, inst, r, &venue.FetchError{Kind: venue.KindParse, Err: nerr}, tick)
			return
		}
		rec.RecordID = model.NewRecordID()

		if err := s.obWriter.WriteRecord(rec.TsMs, rec); err != nil {
			s.logger.Error("orderbook log write failed", "venue", s.runtime.Name, "key", key, "error", err)
		}
		s.backoffTracker.RecordSuccess(key)
		s.latencies.add(r.LatencyMs)
		tick.Succeeded++
		return
	}

	s.handleFailure(now, inst, r, r.Err, tick)
}

func (s *Scheduler) handleFailure(now time.Time, inst model.Instrument, r workerpool.Result, err error, tick *counters) {
	key := inst.Key()
	st := s.backoffTracker.RecordFailure(key, now)
	tick.Failed++

	var fe *venue.FetchError
	kind := venue.ErrorKind("unknown")
	status := 0
	if errors.As(err, &fe) {
		kind = fe.Kind
		status = fe.HTTPStatus
	}

	switch kind {
	case venue.KindHTTP429:
		tick.HTTP429++
	case venue.KindHTTP4xx:
		tick.HTTP4xx++
	case venue.KindHTTP5xx:
		tick.HTTP5xx++
	case venue.KindTimeout:
		tick.Timeouts++
	}

	if s.errSampler.allow(now) {
		rec := model.PollError{
			Venue:         s.runtime.Name,
			TsMs:          now.UnixMilli(),
			InstrumentKey: key,
			MarketID:      inst.MarketID,
			Slug:          inst.Slug,
			HTTPStatus:    status,
			LatencyMs:     r.LatencyMs,
			ErrorKind:     string(kind),
			Message:       model.TruncateMessage(err.Error()),
		}
		if werr := s.errWriter.WriteRecord(rec.TsMs, rec); werr != nil {
			s.logger.Error("poll_errors log write failed", "venue", s.runtime.Name, "error", werr)
		}
	}

	s.logger.Debug("fetch failed",
		"venue", s.runtime.Name, "key", key, "kind", kind,
		"consecutive_failures", st.ConsecutiveFailures, "error", err)
}

func (s *Scheduler) emitStats(now time.Time, p50, p95 int64) {
	rec := model.PollStats{
		Venue:            s.runtime.Name,
		TsMs:             now.UnixMilli(),
		ActiveCount:      len(s.active.Instruments),
		Submitted:        s.statsAcc.Submitted,
		Succeeded:        s.statsAcc.Succeeded,
		Failed:           s.statsAcc.Failed,
		HTTP4xx:          s.statsAcc.HTTP4xx,
		HTTP5xx:          s.statsAcc.HTTP5xx,
		HTTP429:          s.statsAcc.HTTP429,
		Timeouts:         s.statsAcc.Timeouts,
		P50LatencyMs:     p50,
		P95LatencyMs:     p95,
		CooldownRemainMs: s.aimdCtl.CooldownRemaining(now).Milliseconds(),
		InflightLimit:    s.aimdCtl.InflightLimit(),
		MaxWorkers:       s.pool.Capacity(),
	}
	if err := s.statsWriter.WriteRecord(rec.TsMs, rec); err != nil {
		s.logger.Error("poll_stats log write failed", "venue", s.runtime.Name, "error", err)
	}
	if s.statsObserver != nil {
		s.statsObserver.Observe(rec)
	}
	s.statusMu.Lock()
	s.lastPollStats = rec
	s.statusMu.Unlock()

	s.statsAcc = counters{}
	s.lastStats = now
}

// Status returns the most recently emitted PollStats record, or the zero
// value before the first stats_interval has elapsed. It is the only
// Scheduler method safe to call from a goroutine other than the one running
// Run. A health endpoint uses it to report per-venue liveness without
// touching any state the scheduler goroutine itself mutates.
func (s *Scheduler) Status() model.PollStats {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastPollStats
}
