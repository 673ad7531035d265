package singlebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/venue"
	"github.com/rickgao/marketdata-harvester/internal/venue/httpfetch"
)

// Client implements venue.Client for a Kalshi-shaped single-book REST API.
// Each Client owns one *httpfetch.Client, so every worker that calls the
// same Client shares one connection pool; see New.
type Client struct {
	venueName string
	http      *httpfetch.Client
}

// New returns a Client for venueName, talking to baseURL with the given
// per-request timeout and optional auth callback.
func New(venueName, baseURL string, timeout time.Duration, auth httpfetch.AuthHeaders) *Client {
	return &Client{
		venueName: venueName,
		http:      httpfetch.New(baseURL, timeout, auth),
	}
}

// Discover paginates through /markets, requesting markets with status
// "open" (the rules bag may name another single status via "status_filter").
func (c *Client) Discover(ctx context.Context, rules map[string]any) ([]model.Instrument, error) {
	status, _ := rules["status_filter"].(string)
	if status == "" {
		status = "open"
	}

	var out []model.Instrument
	cursor := ""
	for {
		query := url.Values{}
		query.Set("limit", "1000")
		query.Set("status", status)
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		body, err := c.http.Get(ctx, "/markets", query)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}

		var resp marketsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("discover: decode response: %w", err)
		}

		for _, m := range resp.Markets {
			inst, err := toInstrument(c.venueName, m)
			if err != nil {
				continue // skip unparseable entries rather than fail the whole cycle
			}
			out = append(out, inst)
		}

		if resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	return out, nil
}

// GetOrderbook fetches the combined bid/ask orderbook for pollKey (the
// venue ticker). This venue does not provide its own as-of timestamp, so
// obTsMs is always 0.
func (c *Client) GetOrderbook(ctx context.Context, pollKey string) (any, int64, error) {
	body, err := c.http.Get(ctx, "/markets/"+pollKey+"/orderbook", nil)
	if err != nil {
		return nil, 0, err
	}

	var resp orderbookResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, &venue.FetchError{Kind: venue.KindParse, Err: fmt.Errorf("decode orderbook: %w", err)}
	}
	return resp, 0, nil
}

func toInstrument(venueName string, m apiMarket) (model.Instrument, error) {
	closeMs, err := parseCloseTime(m.CloseTimeISO)
	if err != nil {
		return model.Instrument{}, err
	}

	return model.Instrument{
		Venue:        venueName,
		PollKey:      m.Ticker,
		MarketID:     m.EventTicker,
		ExpirationMs: closeMs,
		Title:        m.Title,
		Outcome:      m.YesSubTitle,
		Underlying:   m.Underlying,
		Rule:         "single_book_v1",
	}, nil
}

func parseCloseTime(iso string) (int64, error) {
	if iso == "" {
		return 0, fmt.Errorf("empty close_time")
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, fmt.Errorf("parse close_time %q: %w", iso, err)
	}
	return t.UnixMilli(), nil
}

// centsToDecimalString formats a price expressed in whole cents (0-100) as
// a decimal probability string, e.g. 57 -> "0.57".
func centsToDecimalString(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
