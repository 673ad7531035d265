package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/model"
)

func sampleSet(venue string, asOfMs int64) model.ActiveSet {
	return model.NewActiveSet(venue, asOfMs, []model.Instrument{
		{Venue: venue, PollKey: "A", MarketID: "m1", ExpirationMs: asOfMs + 3_600_000},
		{Venue: venue, PollKey: "B", MarketID: "m1", ExpirationMs: asOfMs + 3_600_000},
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UnixMilli()
	want := sampleSet("v1", now)
	want.Seq = 7

	if err := Write(root, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(root, "v1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Venue != want.Venue || got.Count != want.Count || got.Seq != want.Seq {
		t.Fatalf("Read() = %+v, want %+v", got, want)
	}
	if len(got.Instruments) != 2 {
		t.Fatalf("len(Instruments) = %d, want 2", len(got.Instruments))
	}
	if got.Instruments["v1:A"].MarketID != "m1" {
		t.Errorf("instrument v1:A lost MarketID: %+v", got.Instruments["v1:A"])
	}
}

func TestReadMissing(t *testing.T) {
	root := t.TempDir()
	_, err := Read(root, "nonexistent")
	if err == nil {
		t.Fatal("expected error for missing snapshot, got nil")
	}
}

func TestReadCorrupt(t *testing.T) {
	root := t.TempDir()
	path := Path(root, "v1")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Read(root, "v1")
	if err == nil {
		t.Fatal("expected error for corrupt snapshot, got nil")
	}
}

func TestWriteOverwritesAtomically(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UnixMilli()

	first := sampleSet("v1", now)
	if err := Write(root, first); err != nil {
		t.Fatalf("Write first: %v", err)
	}

	second := model.NewActiveSet("v1", now+1000, []model.Instrument{
		{Venue: "v1", PollKey: "C", MarketID: "m2", ExpirationMs: now + 10_000_000},
	})
	if err := Write(root, second); err != nil {
		t.Fatalf("Write second: %v", err)
	}

	got, err := Read(root, "v1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Count != 1 {
		t.Fatalf("Count = %d, want 1 (overwrite should fully replace)", got.Count)
	}
	if _, ok := got.Instruments["v1:C"]; !ok {
		t.Errorf("expected v1:C from second write, got %+v", got.Instruments)
	}

	if _, err := os.Stat(Path(root, "v1") + ".tmp"); err == nil {
		t.Errorf("temp file left behind after rename")
	}
}

func TestReaderCachesUntilMtimeChanges(t *testing.T) {
	root := t.TempDir()
	now := time.Now().UnixMilli()
	if err := Write(root, sampleSet("v1", now)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := NewReader(root, "v1")
	first, err := r.Poll()
	if err != nil {
		t.Fatalf("Poll (first): %v", err)
	}
	if first.Count != 2 {
		t.Fatalf("Count = %d, want 2", first.Count)
	}

	time.Sleep(10 * time.Millisecond)
	updated := model.NewActiveSet("v1", now+1, []model.Instrument{
		{Venue: "v1", PollKey: "A", MarketID: "m1", ExpirationMs: now + 3_600_000},
	})
	if err := Write(root, updated); err != nil {
		t.Fatalf("Write updated: %v", err)
	}

	second, err := r.Poll()
	if err != nil {
		t.Fatalf("Poll (second): %v", err)
	}
	if second.Count != 1 {
		t.Fatalf("Count after update = %d, want 1 (cache did not refresh)", second.Count)
	}
}

func TestReaderMissingReturnsErrMissing(t *testing.T) {
	root := t.TempDir()
	r := NewReader(root, "ghost")
	_, err := r.Poll()
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("Poll() error = %v, want ErrMissing", err)
	}
}
