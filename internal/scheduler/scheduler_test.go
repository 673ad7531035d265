package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/aimd"
	"github.com/rickgao/marketdata-harvester/internal/backoff"
	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/snapshot"
	"github.com/rickgao/marketdata-harvester/internal/venue"
)

type fakeVenueClient struct {
	raw      any
	obTsMs   int64
	fetchErr error
	hints    chan string
}

// Hints implements venue.HintSource. A nil channel (the zero value) means
// "no hint source connected," matching duobook.Client before ConnectHints.
func (f *fakeVenueClient) Hints() <-chan string {
	return f.hints
}

func (f *fakeVenueClient) Discover(ctx context.Context, rules map[string]any) ([]model.Instrument, error) {
	return nil, nil
}

func (f *fakeVenueClient) GetOrderbook(ctx context.Context, pollKey string) (any, int64, error) {
	if f.fetchErr != nil {
		return nil, 0, f.fetchErr
	}
	return f.raw, f.obTsMs, nil
}

type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(raw any, venueName, pollKey string, tsMs, obTsMs int64) (model.OrderbookRecord, error) {
	return model.OrderbookRecord{
		RecordType:   "orderbook",
		SchemaVer:    model.SchemaVersion,
		Venue:        venueName,
		PollKey:      pollKey,
		InstrumentID: venueName + ":" + pollKey,
		TsMs:         tsMs,
		ObTsMs:       obTsMs,
		BestBid:      "0.5",
	}, nil
}

func newTestScheduler(t *testing.T, root string, client *fakeVenueClient, maxWorkers int) *Scheduler {
	t.Helper()
	rt := venue.Runtime{
		Name:       "v1",
		Client:     client,
		Normalizer: fakeNormalizer{},
		Config: config.VenueConfig{
			Name:           "v1",
			MaxWorkers:     maxWorkers,
			RequestTimeout: time.Second,
		},
	}
	schedCfg := config.SchedulerConfig{
		TickInterval:  time.Millisecond,
		StatsInterval: time.Hour,
		ShutdownGrace: time.Second,
	}
	backoffParams := backoff.Params{Base: 100 * time.Millisecond, Cap: time.Second, JitterFrac: 0}
	aimdParams := aimd.Params{
		Ceiling:           4,
		HighFail:          0.5,
		HighLatencyMs:     2000,
		StableSeconds:     time.Minute,
		LowLatencyMs:      500,
		MinAdjustInterval: time.Minute,
		CooldownOn429:     time.Second,
	}
	obWriter := logwriter.New(root, "v1", logwriter.StreamOrderbooks, time.Hour, 1, nil)
	statsWriter := logwriter.New(root, "v1", logwriter.StreamPollStats, time.Hour, 1, nil)
	errWriter := logwriter.New(root, "v1", logwriter.StreamPollErrors, time.Hour, 1, nil)
	t.Cleanup(func() {
		obWriter.Close()
		statsWriter.Close()
		errWriter.Close()
	})

	telemetry := config.TelemetryConfig{ErrorSampleRate: 1.0, ErrorSampleCapPerS: 50}
	s := New(rt, schedCfg, backoffParams, aimdParams, root, obWriter, statsWriter, errWriter, telemetry, nil)
	s.ctx = context.Background()
	return s
}

func writeSnapshotWithOne(t *testing.T, root, pollKey string) {
	t.Helper()
	exp := time.Now().Add(time.Hour).UnixMilli()
	set := model.NewActiveSet("v1", time.Now().UnixMilli(), []model.Instrument{
		{Venue: "v1", PollKey: pollKey, MarketID: "m1", ExpirationMs: exp},
	})
	if err := snapshot.Write(root, set); err != nil {
		t.Fatalf("snapshot.Write: %v", err)
	}
}

func waitForInflightZero(t *testing.T, s *Scheduler, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.pool.Inflight() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for inflight to drain")
}

func readOneJSONLLine(t *testing.T, dir string) []byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir %s: %v", dir, err)
	}
	if len(entries) == 0 {
		t.Fatalf("no files in %s", dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i+1]
	}
	return data
}

func TestDispatchAndProcessSuccess(t *testing.T) {
	root := t.TempDir()
	writeSnapshotWithOne(t, root, "A")
	client := &fakeVenueClient{raw: "payload", obTsMs: 42}
	s := newTestScheduler(t, root, client, 4)

	now := time.Now()
	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now.Add(time.Millisecond))

	today := now.UTC().Format("2006-01-02")
	dir := filepath.Join(root, "v1", "orderbooks", "date="+today)
	data := readOneJSONLLine(t, dir)

	var rec model.OrderbookRecord
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.InstrumentID != "v1:A" {
		t.Errorf("InstrumentID = %q, want v1:A", rec.InstrumentID)
	}
	if s.backoffTracker.Len() != 0 {
		t.Errorf("expected no backoff state after success, got %d entries", s.backoffTracker.Len())
	}
}

func TestFailureSchedulesBackoffAndSkipsRedispatchSameTick(t *testing.T) {
	root := t.TempDir()
	writeSnapshotWithOne(t, root, "A")
	client := &fakeVenueClient{fetchErr: venue.NewFetchError(500, context.DeadlineExceeded)}
	s := newTestScheduler(t, root, client, 4)

	now := time.Now()
	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now)

	if s.backoffTracker.Len() != 1 {
		t.Fatalf("expected 1 backoff entry after failure, got %d", s.backoffTracker.Len())
	}
	if s.backoffTracker.Eligible("v1:A", now) {
		t.Error("instrument should not be eligible immediately after a failure")
	}
}

func TestRateLimitTriggersCooldownSkipsNextDispatch(t *testing.T) {
	root := t.TempDir()
	writeSnapshotWithOne(t, root, "A")
	client := &fakeVenueClient{fetchErr: venue.NewFetchError(429, context.DeadlineExceeded)}
	s := newTestScheduler(t, root, client, 4)

	now := time.Now()
	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now)

	if !s.aimdCtl.InCooldown(now) {
		t.Fatal("expected controller to enter cooldown after a 429")
	}

	dirBefore := s.pool.Inflight()
	s.tick(now)
	if s.pool.Inflight() != dirBefore {
		t.Error("expected no new dispatch while in cooldown")
	}
}

func TestDrainHintsExpeditesIneligibleInstrument(t *testing.T) {
	root := t.TempDir()
	writeSnapshotWithOne(t, root, "A") // MarketID is "m1" — see writeSnapshotWithOne
	client := &fakeVenueClient{fetchErr: venue.NewFetchError(500, context.DeadlineExceeded), hints: make(chan string, 1)}
	s := newTestScheduler(t, root, client, 4)

	now := time.Now()
	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now)

	if s.backoffTracker.Eligible("v1:A", now) {
		t.Fatal("expected instrument to be ineligible after a failure, before any hint arrives")
	}

	client.fetchErr = nil
	client.raw = "payload"
	client.hints <- "m1"

	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now)

	today := now.UTC().Format("2006-01-02")
	dir := filepath.Join(root, "v1", "orderbooks", "date="+today)
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected a dispatch despite standing backoff once the hint expedited it: %v", err)
	}
	if s.backoffTracker.Len() != 0 {
		t.Errorf("expected backoff cleared after the expedited dispatch succeeded, got %d entries", s.backoffTracker.Len())
	}
}

func TestStatsEmissionWritesRecord(t *testing.T) {
	root := t.TempDir()
	writeSnapshotWithOne(t, root, "A")
	client := &fakeVenueClient{raw: "payload"}
	s := newTestScheduler(t, root, client, 4)
	s.cfg.StatsInterval = 0 // force emission on first tick

	now := time.Now()
	s.tick(now)
	waitForInflightZero(t, s, time.Second)
	s.tick(now.Add(time.Millisecond))
	if err := s.statsWriter.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	today := now.UTC().Format("2006-01-02")
	dir := filepath.Join(root, "v1", "poll_stats", "date="+today)
	data := readOneJSONLLine(t, dir)

	var rec model.PollStats
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Venue != "v1" {
		t.Errorf("Venue = %q, want v1", rec.Venue)
	}
}
