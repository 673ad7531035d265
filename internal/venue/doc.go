// Package venue defines the external capability seam: the Client and
// Normalizer interfaces every venue implements, the categorized FetchError
// taxonomy, and Runtime, which bundles a venue's capabilities with its
// static configuration. These are the only venue-specific seams in the
// system; everything else (scheduler, backoff, AIMD, writer) is
// venue-agnostic.
package venue
