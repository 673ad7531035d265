package httpfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/marketdata-harvester/internal/venue"
)

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	body, err := c.Get(context.Background(), "/ob", url.Values{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestGetRetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	c.RetryBackoff = time.Millisecond
	body, err := c.Get(context.Background(), "/ob", url.Values{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestGetDoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	c.RetryBackoff = time.Millisecond
	_, err := c.Get(context.Background(), "/ob", url.Values{})
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var fe *venue.FetchError
	if !errors.As(err, &fe) || fe.Kind != venue.KindHTTP4xx {
		t.Fatalf("err = %v, want FetchError{Kind: KindHTTP4xx}", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (4xx should not retry)", calls.Load())
	}
}

func TestGetClassifies429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, nil)
	c.MaxRetries = 0
	_, err := c.Get(context.Background(), "/ob", url.Values{})

	var fe *venue.FetchError
	if !errors.As(err, &fe) || fe.Kind != venue.KindHTTP429 {
		t.Fatalf("err = %v, want FetchError{Kind: KindHTTP429}", err)
	}
}

func TestGetSendsAuthHeaders(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, func() map[string]string {
		return map[string]string{"Authorization": "Bearer test-token"}
	})
	if _, err := c.Get(context.Background(), "/ob", url.Values{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotHeader != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", gotHeader, "Bearer test-token")
	}
}
