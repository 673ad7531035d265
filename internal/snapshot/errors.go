package snapshot

import "errors"

// ErrMissing is returned by Read when the snapshot file does not exist yet,
// e.g. Discovery has not completed its first cycle for this venue. Callers
// should keep polling with the last good ActiveSet.
var ErrMissing = errors.New("snapshot: file missing")

// ErrCorrupt is returned by Read when the snapshot file exists but fails to
// parse. This should only happen if a reader raced an incomplete write on a
// non-POSIX-atomic filesystem; callers recover by retrying on the next read
// cycle.
var ErrCorrupt = errors.New("snapshot: file corrupt")
