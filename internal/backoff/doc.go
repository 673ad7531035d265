// Package backoff implements per-instrument exponential backoff with
// jitter. State lives entirely in process memory, keyed by instrument key,
// and is garbage-collected against the current ActiveSet every tick. It is
// never persisted across restarts.
package backoff
