// Package scheduler implements the per-venue polling core: the eligibility
// filter over BackoffState and the AIMD-controlled inflight limit, dispatch
// to a bounded worker pool, result collection, and periodic telemetry
// emission. One Scheduler instance owns exactly one venue's state; no
// locking is needed because every mutation happens on its own goroutine.
package scheduler
