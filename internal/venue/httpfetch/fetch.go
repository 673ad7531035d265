package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/venue"
)

// AuthHeaders returns the headers a request should carry for a venue's
// credentials. Auth is venue-specific and opaque to the core, so it is
// injected as a callback rather than baked into Client.
type AuthHeaders func() map[string]string

// Client wraps an *http.Client with its own connection pool, a base URL,
// and an optional retry/backoff policy for transient failures.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Auth         AuthHeaders
	MaxRetries   int
	RetryBackoff time.Duration
}

// New returns a Client with an isolated *http.Client (its own Transport and
// connection pool) and the given per-request timeout. A Client is safe for
// concurrent use; every goroutine that calls the same Client shares its pool.
// The example venue clients build one Client per venue.
func New(baseURL string, timeout time.Duration, auth AuthHeaders) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{},
		},
		Auth:         auth,
		MaxRetries:   2,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// Get performs a GET request against path with query, retrying transient
// (5xx/429) failures with jittered exponential backoff. It returns a
// *venue.FetchError on any failure, categorized by kind.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	backoff := c.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			select {
			case <-ctx.Done():
				return nil, &venue.FetchError{Kind: venue.KindTimeout, Err: ctx.Err()}
			case <-time.After(jitter):
			}
			backoff *= 2
		}

		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}

		var fe *venue.FetchError
		if !errors.As(err, &fe) || !isRetryable(fe) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func isRetryable(fe *venue.FetchError) bool {
	return fe.Kind == venue.KindHTTP429 || fe.Kind == venue.KindHTTP5xx
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &venue.FetchError{Kind: venue.KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.Auth != nil {
		for k, v := range c.Auth() {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &venue.FetchError{Kind: venue.KindTimeout, Err: err}
		}
		return nil, &venue.FetchError{Kind: venue.KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &venue.FetchError{Kind: venue.KindNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		return nil, venue.NewFetchError(resp.StatusCode, fmt.Errorf("%s", http.StatusText(resp.StatusCode)))
	}

	return body, nil
}
