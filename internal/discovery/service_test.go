package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/logwriter"
	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/snapshot"
	"github.com/rickgao/marketdata-harvester/internal/venue"
)

type fakeClient struct {
	instruments []model.Instrument
	err         error
	calls       int
}

func (f *fakeClient) Discover(ctx context.Context, rules map[string]any) ([]model.Instrument, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.instruments, nil
}

func (f *fakeClient) GetOrderbook(ctx context.Context, pollKey string) (any, int64, error) {
	return nil, 0, errors.New("not used")
}

func newTestService(t *testing.T, root string, client *fakeClient) *Service {
	t.Helper()
	rt := venue.Runtime{Name: "v1", Client: client, Config: config.VenueConfig{}}
	writer := logwriter.New(root, "v1", logwriter.StreamMarkets, time.Hour, 1, nil)
	t.Cleanup(func() { writer.Close() })
	return New(rt, config.DiscoveryConfig{Interval: time.Hour}, root, writer, nil)
}

func readMarketRecords(t *testing.T, root string, date string) []model.MarketRecord {
	t.Helper()
	dir := filepath.Join(root, "v1", "markets", "date="+date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("ReadDir: %v", err)
	}
	var out []model.MarketRecord
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		for _, line := range splitLines(data) {
			var rec model.MarketRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			out = append(out, rec)
		}
	}
	return out
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				out = append(out, data[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func TestRunOnceWritesSnapshotAndMarketsOnFirstRun(t *testing.T) {
	root := t.TempDir()
	client := &fakeClient{instruments: []model.Instrument{
		{Venue: "v1", PollKey: "A", MarketID: "m1", ExpirationMs: time.Now().Add(time.Hour).UnixMilli()},
		{Venue: "v1", PollKey: "B", MarketID: "m2", ExpirationMs: time.Now().Add(time.Hour).UnixMilli()},
	}}
	svc := newTestService(t, root, client)

	svc.RunOnce(context.Background())

	set, err := snapshot.Read(root, "v1")
	if err != nil {
		t.Fatalf("snapshot.Read: %v", err)
	}
	if set.Count != 2 {
		t.Errorf("Count = %d, want 2", set.Count)
	}

	svc.marketsWriter.Close()
	today := time.Now().UTC().Format("2006-01-02")
	recs := readMarketRecords(t, root, today)
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2 on first discovery", len(recs))
	}
}

func TestRunOnceOnlyLogsChangedInstruments(t *testing.T) {
	root := t.TempDir()
	exp := time.Now().Add(time.Hour).UnixMilli()
	client := &fakeClient{instruments: []model.Instrument{
		{Venue: "v1", PollKey: "A", MarketID: "m1", ExpirationMs: exp, Title: "first"},
	}}
	svc := newTestService(t, root, client)

	svc.RunOnce(context.Background())

	// Unchanged second cycle: no new MarketRecord.
	svc.RunOnce(context.Background())
	svc.marketsWriter.Close()

	today := time.Now().UTC().Format("2006-01-02")
	recs := readMarketRecords(t, root, today)
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1 (second cycle unchanged)", len(recs))
	}
}

func TestRunOnceLogsModifiedInstrument(t *testing.T) {
	root := t.TempDir()
	exp := time.Now().Add(time.Hour).UnixMilli()
	client := &fakeClient{instruments: []model.Instrument{
		{Venue: "v1", PollKey: "A", MarketID: "m1", ExpirationMs: exp, Title: "first"},
	}}
	svc := newTestService(t, root, client)
	svc.RunOnce(context.Background())

	client.instruments[0].Title = "second"
	svc.RunOnce(context.Background())
	svc.marketsWriter.Close()

	today := time.Now().UTC().Format("2006-01-02")
	recs := readMarketRecords(t, root, today)
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2 (first + modified)", len(recs))
	}
	if recs[1].Title != "second" {
		t.Errorf("second record Title = %q, want second", recs[1].Title)
	}
}

func TestRunOnceDiscoveryErrorDoesNotTouchSnapshot(t *testing.T) {
	root := t.TempDir()
	client := &fakeClient{err: errors.New("venue unreachable")}
	svc := newTestService(t, root, client)

	svc.RunOnce(context.Background())

	if _, err := snapshot.Read(root, "v1"); !errors.Is(err, snapshot.ErrMissing) {
		t.Errorf("expected no snapshot written on discovery error, got err=%v", err)
	}
}

func TestRunOnceWritesSnapshotEvenWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	exp := time.Now().Add(time.Hour).UnixMilli()
	client := &fakeClient{instruments: []model.Instrument{
		{Venue: "v1", PollKey: "A", MarketID: "m1", ExpirationMs: exp},
	}}
	svc := newTestService(t, root, client)

	svc.RunOnce(context.Background())
	first, err := snapshot.Read(root, "v1")
	if err != nil {
		t.Fatalf("snapshot.Read: %v", err)
	}

	svc.RunOnce(context.Background())
	second, err := snapshot.Read(root, "v1")
	if err != nil {
		t.Fatalf("snapshot.Read: %v", err)
	}

	if second.Seq <= first.Seq {
		t.Errorf("second.Seq = %d, want > first.Seq %d", second.Seq, first.Seq)
	}
}
