// Package httpfetch is the shared bounded-retry HTTP helper used by the
// example venue clients (internal/venue/singlebook, internal/venue/duobook).
// It keeps doRequest/doWithRetry in one place instead of duplicating them per
// venue. Each Client has one connection pool, shared by all its callers.
package httpfetch
