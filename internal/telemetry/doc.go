// Package telemetry mirrors each venue's PollStats record onto Prometheus
// gauges and counters, exposed over HTTP for scraping. It is a diagnostic
// side channel only; the poll_stats/poll_errors JSONL logs remain the
// durable record.
package telemetry
