package duobook

import (
	"fmt"
	"strconv"

	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/venue"
)

// Normalizer implements venue.Normalizer for duobook's paired YES/NO books.
// The NO side's bids become the instrument's effective asks: buying NO at
// price p is equivalent to selling YES at 1-p, so NO-side bids are inverted
// into YES-priced asks and merged with YES-side bids.
type Normalizer struct{}

func (Normalizer) Normalize(raw any, venueName, pollKey string, tsMs, obTsMs int64) (model.OrderbookRecord, error) {
	pair, ok := raw.(rawPair)
	if !ok {
		return model.OrderbookRecord{}, &venue.FetchError{Kind: venue.KindParse, Err: fmt.Errorf("normalize: unexpected raw type %T", raw)}
	}

	bids, err := levelsFrom(pair.Yes.Bids, false)
	if err != nil {
		return model.OrderbookRecord{}, &venue.FetchError{Kind: venue.KindParse, Err: err}
	}
	asks, err := levelsFrom(pair.No.Bids, true)
	if err != nil {
		return model.OrderbookRecord{}, &venue.FetchError{Kind: venue.KindParse, Err: err}
	}

	rec := model.OrderbookRecord{
		RecordType:   "orderbook",
		SchemaVer:    model.SchemaVersion,
		Venue:        venueName,
		PollKey:      pollKey,
		InstrumentID: venueName + ":" + pollKey,
		TsMs:         tsMs,
		ObTsMs:       obTsMs,
		Bids:         bids,
		Asks:         asks,
	}

	if len(bids) > 0 {
		rec.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		rec.BestAsk = asks[0].Price
	}
	if rec.BestBid != "" && rec.BestAsk != "" {
		bid, errB := strconv.ParseFloat(rec.BestBid, 64)
		ask, errA := strconv.ParseFloat(rec.BestAsk, 64)
		if errB == nil && errA == nil {
			rec.Mid = strconv.FormatFloat((bid+ask)/2, 'f', 4, 64)
			rec.Spread = strconv.FormatFloat(ask-bid, 'f', 4, 64)
		}
	}

	return rec, nil
}

// levelsFrom converts venue-native decimal-string levels. When invert is
// true (NO-side bids becoming YES-side asks), price is replaced by 1-price.
func levelsFrom(raw []bookLevel, invert bool) ([]model.PriceLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	levels := make([]model.PriceLevel, len(raw))
	for i, lvl := range raw {
		price := lvl.Price
		if invert {
			p, err := strconv.ParseFloat(lvl.Price, 64)
			if err != nil {
				return nil, fmt.Errorf("parse price %q: %w", lvl.Price, err)
			}
			price = strconv.FormatFloat(1-p, 'f', 4, 64)
		}
		levels[i] = model.PriceLevel{Price: price, Size: lvl.Size}
	}
	return levels, nil
}
