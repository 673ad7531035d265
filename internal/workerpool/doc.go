// Package workerpool provides the bounded-parallel fetch pool used by each
// venue scheduler. Pool enforces the hard per-venue concurrency cap
// (max_workers); the AIMD-controlled, typically lower, inflight_limit is
// enforced by the caller choosing how many jobs to Submit per tick.
package workerpool
