// Package logwriter implements the append-only, UTC-day-partitioned JSONL
// writer shared by Discovery (markets log) and Polling (orderbook, poll_stats,
// poll_errors logs). Rotation is time-based (UTC midnight) and part numbering
// within a (venue, stream, date) resumes across restarts by scanning existing
// part files on open.
package logwriter
