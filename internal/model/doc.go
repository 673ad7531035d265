// Package model defines the shared data types that cross process boundaries:
// the Instrument/ActiveSet discovery contract, the two emitted wire records
// (OrderbookRecord, MarketRecord), and the PollStats/PollError telemetry
// records. The on-disk snapshot envelope lives in internal/snapshot.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch, UTC
//   - instrument_key: "<venue>:<poll_key>", globally unique
//   - schema_version: 1 for OrderbookRecord and MarketRecord; the telemetry
//     records carry no schema_version
package model
