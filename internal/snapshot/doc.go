// Package snapshot implements the Discovery to Polling handoff contract:
// one versioned JSON file per venue, atomically replaced by Discovery and
// cheaply re-read by Polling at a fast, fixed cadence.
//
// Writers never mutate the target path in place. They serialize to a
// sibling ".tmp" file in the same directory, fsync it, then rename it
// over the target. On POSIX filesystems rename is atomic, so a reader
// always observes either the previous complete file or the new one.
package snapshot
