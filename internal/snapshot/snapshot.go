package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/model"
)

// envelope is the on-disk representation written by Discovery and parsed by
// Polling. Seq is a monotonic counter that disambiguates two writes landing
// in the same wall-clock millisecond.
type envelope struct {
	AsOfTsUTC   string                       `json:"asof_ts_utc"`
	Venue       string                       `json:"venue"`
	Seq         uint64                       `json:"seq"`
	Count       int                          `json:"count"`
	Instruments map[string]model.Instrument  `json:"instruments"`
}

// Path returns the canonical snapshot file path for a venue under root.
func Path(root, venue string) string {
	return filepath.Join(root, venue, "state", "active_instruments.snapshot.json")
}

// Write atomically replaces the snapshot file for set.Venue under root:
// serialize to a sibling temp file, fsync it, then rename over the target.
// A reader never observes a partial write.
func Write(root string, set model.ActiveSet) error {
	path := Path(root, set.Venue)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir: %w", err)
	}

	env := envelope{
		AsOfTsUTC:   time.UnixMilli(set.AsOfMs).UTC().Format(time.RFC3339Nano),
		Venue:       set.Venue,
		Seq:         set.Seq,
		Count:       set.Count,
		Instruments: set.Instruments,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// Read parses the snapshot file for venue under root into an ActiveSet. It
// returns ErrMissing or ErrCorrupt on failure; both are recoverable by the
// caller.
func Read(root, venue string) (model.ActiveSet, error) {
	path := Path(root, venue)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.ActiveSet{}, ErrMissing
		}
		return model.ActiveSet{}, fmt.Errorf("snapshot: read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return model.ActiveSet{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	asOfMs, err := parseAsOf(env.AsOfTsUTC)
	if err != nil {
		return model.ActiveSet{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return model.ActiveSet{
		Venue:       env.Venue,
		AsOfMs:      asOfMs,
		Seq:         env.Seq,
		Count:       env.Count,
		Instruments: env.Instruments,
	}, nil
}

func parseAsOf(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
