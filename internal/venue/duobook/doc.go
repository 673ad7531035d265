// Package duobook is an example dual-book YES/NO CLOB venue client, shaped
// after a Polymarket-style API where each outcome (YES, NO) is its own
// token with its own order book. It satisfies venue.Client and
// venue.Normalizer, merging the two single-sided books into one
// OrderbookRecord.
package duobook
