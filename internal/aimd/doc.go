// Package aimd implements the per-venue additive-increase / multiplicative-
// decrease congestion controller. One Controller instance per venue governs
// a single control variable, InflightLimit, in [1, ceiling]. It is purely
// reactive and memoryless across restarts: no state persists beyond process
// lifetime.
package aimd
