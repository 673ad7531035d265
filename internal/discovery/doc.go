// Package discovery implements the per-venue discovery loop: periodic
// rediscovery, diffing against the previously written ActiveSet, appending
// MarketRecords for added-or-modified instruments, and atomically publishing
// the snapshot that the polling process reads.
package discovery
