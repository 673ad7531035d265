package duobook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/model"
	"github.com/rickgao/marketdata-harvester/internal/venue"
	"github.com/rickgao/marketdata-harvester/internal/venue/httpfetch"
)

// Client implements venue.Client for a Polymarket-shaped dual YES/NO book
// REST API. GetOrderbook's pollKey is "yesTokenID|noTokenID"; the two token
// books are fetched together via the batch orderbooks endpoint.
//
// Client additionally implements venue.HintSource once ConnectHints has
// been called. The scheduler drains Hints() each tick to expedite an
// instrument's backoff deadline ahead of a dropped WebSocket push, never to
// decide whether to poll it. REST remains authoritative.
type Client struct {
	venueName string
	http      *httpfetch.Client

	hintKeys chan string
}

// New returns a Client for venueName talking to baseURL. The push-hint
// channel is disabled until ConnectHints is called.
func New(venueName, baseURL string, timeout time.Duration, auth httpfetch.AuthHeaders) *Client {
	return &Client{
		venueName: venueName,
		http:      httpfetch.New(baseURL, timeout, auth),
	}
}

// ConnectHints dials url as an optional push-invalidation side channel and
// starts translating InvalidationHints into the condition ids Hints()
// exposes. A failed dial leaves the Client exactly as it was before the
// call: GetOrderbook and Discover never depend on this channel, so callers
// should treat a connect error as a log line, not a fatal condition.
func (c *Client) ConnectHints(ctx context.Context, hintsURL string, logger *slog.Logger) error {
	hc := NewHintConn(hintsURL, logger)
	if err := hc.Connect(ctx); err != nil {
		return fmt.Errorf("connect hints: %w", err)
	}

	c.hintKeys = make(chan string, 256)
	go func() {
		defer close(c.hintKeys)
		for hint := range hc.Hints() {
			select {
			case c.hintKeys <- hint.ConditionID:
			default:
			}
		}
	}()
	return nil
}

// Hints implements venue.HintSource.
func (c *Client) Hints() <-chan string {
	return c.hintKeys
}

// Discover paginates through the markets listing. Each market yields one
// Instrument whose PollKey joins the YES and NO token ids, so GetOrderbook
// can address both sides of the book; the condition id is its MarketID, and
// the token ids are also copied into Extra.
func (c *Client) Discover(ctx context.Context, rules map[string]any) ([]model.Instrument, error) {
	var out []model.Instrument
	cursor := ""
	for {
		query := url.Values{}
		query.Set("limit", "500")
		if cursor != "" {
			query.Set("next_cursor", cursor)
		}

		body, err := c.http.Get(ctx, "/markets", query)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}

		var resp marketsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("discover: decode response: %w", err)
		}

		for _, m := range resp.Data {
			inst, err := toInstrument(c.venueName, m)
			if err != nil {
				continue
			}
			out = append(out, inst)
		}

		if resp.Cursor == "" || resp.Cursor == cursor {
			break
		}
		cursor = resp.Cursor
	}

	return out, nil
}

// GetOrderbook fetches the YES and NO books for pollKey's two token ids in a
// single batch request. The venue provides no reliable as-of time, so
// obTsMs is 0.
func (c *Client) GetOrderbook(ctx context.Context, pollKey string) (any, int64, error) {
	// pollKey carries "yesTokenID|noTokenID"; see toInstrument below.
	yesID, noID, err := splitPollKey(pollKey)
	if err != nil {
		return nil, 0, &venue.FetchError{Kind: venue.KindParse, Err: err}
	}

	query := url.Values{}
	query.Set("token_ids", yesID+","+noID)

	body, err := c.http.Get(ctx, "/books", query)
	if err != nil {
		return nil, 0, err
	}

	var raw map[string]tokenBook
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, &venue.FetchError{Kind: venue.KindParse, Err: fmt.Errorf("decode books: %w", err)}
	}

	return rawPair{Yes: raw[yesID], No: raw[noID]}, 0, nil
}

func toInstrument(venueName string, m market) (model.Instrument, error) {
	if m.YesTokenID == "" || m.NoTokenID == "" {
		return model.Instrument{}, fmt.Errorf("market %s missing token ids", m.ConditionID)
	}

	expMs, err := parseEndDate(m.EndDateISO)
	if err != nil {
		return model.Instrument{}, err
	}

	return model.Instrument{
		Venue:        venueName,
		PollKey:      pollKeyFor(m.YesTokenID, m.NoTokenID),
		MarketID:     m.ConditionID,
		ExpirationMs: expMs,
		Slug:         m.Slug,
		Title:        m.Question,
		Outcome:      "YES/NO",
		Rule:         "duo_book_v1",
		Extra: map[string]string{
			"yes_token_id": m.YesTokenID,
			"no_token_id":  m.NoTokenID,
		},
	}, nil
}

func pollKeyFor(yesID, noID string) string {
	return yesID + "|" + noID
}

func splitPollKey(pollKey string) (yesID, noID string, err error) {
	for i := 0; i < len(pollKey); i++ {
		if pollKey[i] == '|' {
			return pollKey[:i], pollKey[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("poll key %q missing yes|no separator", pollKey)
}

func parseEndDate(iso string) (int64, error) {
	if iso == "" {
		return 0, fmt.Errorf("empty end_date_iso")
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, fmt.Errorf("parse end_date_iso %q: %w", iso, err)
	}
	return t.UnixMilli(), nil
}
