package model

import "github.com/google/uuid"

// SchemaVersion is the current wire schema version for emitted records.
// Readers must tolerate a missing schema_version (legacy, best-effort) and
// must ignore unknown fields.
const SchemaVersion = 1

// NewRecordID returns a fresh record identifier for one emitted log line.
// Downstream dedup and rebuild tooling correlates on it across reprocessing
// runs; the core pipeline has no use for it itself.
func NewRecordID() string {
	return uuid.New().String()
}

// PriceLevel is a single price/size point in an order-book side.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderbookRecord is the wire record emitted on every successful poll.
type OrderbookRecord struct {
	RecordID     string       `json:"record_id,omitempty"`
	RecordType   string       `json:"record_type"`
	SchemaVer    int          `json:"schema_version"`
	Venue        string       `json:"venue"`
	PollKey      string       `json:"poll_key"`
	InstrumentID string       `json:"instrument_id"`
	TsMs         int64        `json:"ts_ms"`
	ObTsMs       int64        `json:"ob_ts_ms,omitempty"`
	Bids         []PriceLevel `json:"bids,omitempty"`
	Asks         []PriceLevel `json:"asks,omitempty"`
	BestBid      string       `json:"best_bid,omitempty"`
	BestAsk      string       `json:"best_ask,omitempty"`
	Mid          string       `json:"mid,omitempty"`
	Spread       string       `json:"spread,omitempty"`
	Raw          any          `json:"raw,omitempty"`
}

// MarketRecord is the wire record emitted on membership/metadata change.
type MarketRecord struct {
	RecordID     string `json:"record_id,omitempty"`
	RecordType   string `json:"record_type"`
	SchemaVer    int    `json:"schema_version"`
	Venue        string `json:"venue"`
	PollKey      string `json:"poll_key"`
	InstrumentID string `json:"instrument_id"`
	MarketID     string `json:"market_id"`
	ExpirationMs int64  `json:"expiration_ms"`
	Slug         string `json:"slug,omitempty"`
	Title        string `json:"title,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	Underlying   string `json:"underlying,omitempty"`
	Rule         string `json:"rule,omitempty"`
}

// NewMarketRecord builds a MarketRecord from an Instrument for the markets log.
func NewMarketRecord(inst Instrument) MarketRecord {
	return MarketRecord{
		RecordID:     NewRecordID(),
		RecordType:   "market",
		SchemaVer:    SchemaVersion,
		Venue:        inst.Venue,
		PollKey:      inst.PollKey,
		InstrumentID: inst.Key(),
		MarketID:     inst.MarketID,
		ExpirationMs: inst.ExpirationMs,
		Slug:         inst.Slug,
		Title:        inst.Title,
		Outcome:      inst.Outcome,
		Underlying:   inst.Underlying,
		Rule:         inst.Rule,
	}
}

// PollStats is the per-venue telemetry record emitted every stats_interval.
// Counters are deltas since the previous emission.
type PollStats struct {
	Venue              string `json:"venue"`
	TsMs               int64  `json:"ts_ms"`
	ActiveCount        int    `json:"active_count"`
	Submitted          int64  `json:"submitted"`
	Succeeded          int64  `json:"succeeded"`
	Failed             int64  `json:"failed"`
	HTTP4xx            int64  `json:"http_4xx"`
	HTTP5xx            int64  `json:"http_5xx"`
	HTTP429            int64  `json:"http_429"`
	Timeouts           int64  `json:"timeouts"`
	P50LatencyMs       int64  `json:"p50_latency_ms"`
	P95LatencyMs       int64  `json:"p95_latency_ms"`
	CooldownRemainMs   int64  `json:"cooldown_remaining_ms"`
	InflightLimit      int    `json:"inflight_limit"`
	MaxWorkers         int    `json:"max_workers"`
}

// PollError is a sampled diagnostic record for a single fetch failure.
type PollError struct {
	Venue          string `json:"venue"`
	TsMs           int64  `json:"ts_ms"`
	InstrumentKey  string `json:"instrument_key"`
	MarketID       string `json:"market_id"`
	Slug           string `json:"slug,omitempty"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	LatencyMs      int64  `json:"latency_ms"`
	ErrorKind      string `json:"error_kind"`
	Message        string `json:"message"`
}

// TruncateMessage caps an error message to 256 chars.
func TruncateMessage(msg string) string {
	const maxLen = 256
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen])
}
