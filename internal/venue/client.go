package venue

import (
	"context"

	"github.com/rickgao/marketdata-harvester/internal/config"
	"github.com/rickgao/marketdata-harvester/internal/model"
)

// Client is the venue-specific capability a worker calls once per dispatch.
// Implementations must be safe to call from multiple worker goroutines
// simultaneously. The example clients share one connection pool across all
// such calls.
type Client interface {
	// Discover returns the venue's current instrument universe given opaque,
	// venue-specific rules (config.VenueConfig.DiscoveryRules). Any non-nil
	// error fails the discovery attempt; the example clients return wrapped
	// errors and do not wrap them in a DiscoveryError.
	Discover(ctx context.Context, rules map[string]any) ([]model.Instrument, error)

	// GetOrderbook fetches the raw payload for pollKey. obTsMs is the venue's
	// own "as-of" timestamp if it provides one; 0 if not. It fails with a
	// *FetchError.
	GetOrderbook(ctx context.Context, pollKey string) (raw any, obTsMs int64, err error)
}

// Normalizer is the pure-function venue seam that turns a raw payload into
// the wire OrderbookRecord. Errors during normalization are treated as
// fetch failures.
type Normalizer interface {
	Normalize(raw any, venue, pollKey string, tsMs, obTsMs int64) (model.OrderbookRecord, error)
}

// HintSource is an optional capability a Client may implement to push
// out-of-band change signals alongside REST polling. A hint only changes
// when an instrument is next eligible, never whether REST is queried; REST
// stays the sole source of book data. The scheduler checks for this via a
// type assertion since most venues have no push channel.
type HintSource interface {
	// Hints returns a channel of venue-specific market identifiers whose
	// book changed, or nil if no push channel is connected. Implementations
	// must never block sending to it and must close it once no further
	// hints will arrive.
	Hints() <-chan string
}

// Runtime bundles one venue's capabilities with its static configuration,
// the only venue-specific seam the scheduler depends on.
type Runtime struct {
	Name       string
	Client     Client
	Normalizer Normalizer
	Config     config.VenueConfig
}
