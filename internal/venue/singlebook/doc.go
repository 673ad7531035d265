// Package singlebook is an example single-book CLOB venue client, shaped
// after a Kalshi-style REST API: cursor-paginated market discovery and a
// single combined bid/ask orderbook per market. It satisfies venue.Client
// and venue.Normalizer and exists to give the scheduler something concrete
// to dispatch against.
package singlebook
