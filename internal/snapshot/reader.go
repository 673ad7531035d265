package snapshot

import (
	"os"

	"github.com/rickgao/marketdata-harvester/internal/model"
)

// Reader caches the last parsed ActiveSet for one venue and skips re-parsing
// when the underlying file's mtime hasn't changed since the last read. The
// polling hot path calls Poll on a fast cadence without paying a JSON-parse
// cost on every tick.
type Reader struct {
	root  string
	venue string

	lastModTime int64
	lastSet     model.ActiveSet
	haveSet     bool
}

// NewReader returns a Reader for venue under root. No file is touched until
// the first Poll call.
func NewReader(root, venue string) *Reader {
	return &Reader{root: root, venue: venue}
}

// Poll returns the current ActiveSet. If the snapshot file's mtime is
// unchanged since the last successful parse, it returns the cached set
// without touching the file contents. On ErrMissing or ErrCorrupt, it
// returns the last good set (if any) along with the error so the caller can
// log and continue; if no set has ever been read, the zero ActiveSet is
// returned alongside the error.
func (r *Reader) Poll() (model.ActiveSet, error) {
	path := Path(r.root, r.venue)

	info, statErr := os.Stat(path)
	if statErr == nil && r.haveSet && info.ModTime().UnixNano() == r.lastModTime {
		return r.lastSet, nil
	}

	set, err := Read(r.root, r.venue)
	if err != nil {
		if r.haveSet {
			return r.lastSet, err
		}
		return model.ActiveSet{}, err
	}

	if statErr == nil {
		r.lastModTime = info.ModTime().UnixNano()
	}
	r.lastSet = set
	r.haveSet = true
	return set, nil
}
