package singlebook

import (
	"fmt"
	"strconv"

	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/venue"
)

// Normalizer implements venue.Normalizer for singlebook's orderbook shape.
type Normalizer struct{}

// Normalize converts the raw orderbookResponse into an OrderbookRecord. It
// is a pure function; errors are treated as fetch failures.
func (Normalizer) Normalize(raw any, venueName, pollKey string, tsMs, obTsMs int64) (model.OrderbookRecord, error) {
	resp, ok := raw.(orderbookResponse)
	if !ok {
		return model.OrderbookRecord{}, &venue.FetchError{Kind: venue.KindParse, Err: fmt.Errorf("normalize: unexpected raw type %T", raw)}
	}

	bids := levelsFrom(resp.Orderbook.Yes)
	asks := levelsFrom(resp.Orderbook.No)

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

func levelsFrom(raw [][2]int64) []model.PriceLevel {
	if len(raw) == 0 {
		return nil
	}
	levels := make([]model.PriceLevel, len(raw))
	for i, lvl := range raw {
		levels[i] = model.PriceLevel{
			Price: centsToDecimalString(lvl[0]),
			Size:  strconv.FormatInt(lvl[1], 10),
		}
	}
	return levels
}
