package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goharvest/internal/cache"
	"github.com/hyperifyio/goharvest/internal/content"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	c := &cache.ContentCache{Dir: t.TempDir(), TTL: time.Hour}
	return New(c, Options{Retries: -1, BackoffBase: time.Millisecond})
}

func TestFetch_HTMLSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>T</title></head><body><p>Hello</p></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{})

	if wc.Error != nil {
		t.Fatalf("unexpected error: %v", wc.Error)
	}
	if wc.StatusCode != http.StatusOK {
		t.Errorf("status = %d", wc.StatusCode)
	}
	if wc.ID != content.ContentID(srv.URL) {
		t.Error("content ID must be deterministic for the URL")
	}
	if len(wc.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(wc.Blocks))
	}
	if wc.Metadata.Title != "T" {
		t.Errorf("title = %q, want T", wc.Metadata.Title)
	}
	if wc.Duration <= 0 {
		t.Error("duration should be recorded")
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	t.Parallel()
	f := newTestFetcher(t)
	tests := []string{"", "not-a-url", "ftp://example.com/file", "https://"}
	for _, raw := range tests {
		wc := f.Fetch(context.Background(), raw, Options{})
		if wc.Error == nil {
			t.Errorf("%q: expected validation error", raw)
			continue
		}
		if wc.Error.Code != content.ErrCodeValidation {
			t.Errorf("%q: code = %q, want validation", raw, wc.Error.Code)
		}
		if len(wc.Blocks) != 0 {
			t.Errorf("%q: failed fetch must carry no blocks", raw)
		}
	}
}

func TestFetch_HTTPStatusIsTerminal(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{Retries: 3, BackoffBase: time.Millisecond})

	if wc.Error == nil || wc.Error.Code != content.ErrCodeHTTP {
		t.Fatalf("error = %v, want http_status", wc.Error)
	}
	if wc.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", wc.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times; non-2xx must not be retried", got)
	}
}

func TestFetch_RetriesBounded(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Drop the connection so the client sees a transport error.
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{Retries: 2, BackoffBase: time.Millisecond})

	if wc.Error == nil || wc.Error.Code != content.ErrCodeNetwork {
		t.Fatalf("error = %v, want network", wc.Error)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("attempts = %d, want retries+1 = 3", got)
	}
}

func TestFetch_BackoffNonDecreasing(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	var attempts []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts = append(attempts, time.Now())
		mu.Unlock()
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	f.Fetch(context.Background(), srv.URL, Options{Retries: 3, BackoffBase: 25 * time.Millisecond})

	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 4 {
		t.Fatalf("attempts = %d, want 4", len(attempts))
	}
	// Delays double per retry; allow a little scheduling slack, but the
	// gap between attempts must never shrink.
	const slack = 5 * time.Millisecond
	prev := time.Duration(0)
	for i := 1; i < len(attempts); i++ {
		gap := attempts[i].Sub(attempts[i-1])
		if gap+slack < prev {
			t.Errorf("gap %d = %v, shorter than previous %v", i, gap, prev)
		}
		prev = gap
	}
}

func TestFetch_RetrySucceedsEventually(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
			}
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Recovered</p></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{Retries: 3, BackoffBase: time.Millisecond})

	if wc.Error != nil {
		t.Fatalf("expected recovery, got %v", wc.Error)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestFetch_Timeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{
		Timeout: 20 * time.Millisecond, Retries: -1,
	})
	if wc.Error == nil || wc.Error.Code != content.ErrCodeTimeout {
		t.Fatalf("error = %v, want timeout", wc.Error)
	}
}

func TestFetch_CacheHit(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>Once</p></body></html>`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()

	first := f.Fetch(ctx, srv.URL, Options{})
	if first.Error != nil {
		t.Fatalf("first fetch: %v", first.Error)
	}
	second := f.Fetch(ctx, srv.URL, Options{})
	if second.Error != nil {
		t.Fatalf("second fetch: %v", second.Error)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times; second fetch should come from cache", got)
	}

	third := f.Fetch(ctx, srv.URL, Options{BypassCache: true})
	if third.Error != nil {
		t.Fatalf("bypass fetch: %v", third.Error)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times; bypass must refetch", got)
	}
}

func TestFetch_FailuresNotCached(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	ctx := context.Background()
	f.Fetch(ctx, srv.URL, Options{})
	f.Fetch(ctx, srv.URL, Options{})
	if got := hits.Load(); got != 2 {
		t.Errorf("server hit %d times; failures must not be cached", got)
	}
}

func TestFetch_MaxBodySize(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for i := 0; i < 1000; i++ {
			w.Write([]byte("0123456789"))
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{MaxBodySize: 100})
	if wc.Error != nil {
		t.Fatalf("fetch: %v", wc.Error)
	}
	if len(wc.Text) > 100 {
		t.Errorf("text length = %d, want capped at 100 bytes", len(wc.Text))
	}
}

func TestFetch_RedirectLimit(t *testing.T) {
	t.Parallel()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	wc := f.Fetch(context.Background(), srv.URL, Options{Retries: -1})
	if wc.Error == nil {
		t.Fatal("expected redirect loop to fail")
	}
}

func TestValidateURL(t *testing.T) {
	t.Parallel()
	if err := ValidateURL("https://example.com/x"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	if err := ValidateURL("  http://example.com  "); err != nil {
		t.Errorf("surrounding whitespace should be tolerated: %v", err)
	}
	for _, bad := range []string{"", "example.com/no-scheme", "file:///etc/passwd"} {
		if err := ValidateURL(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestMergeOptions(t *testing.T) {
	t.Parallel()
	base := Options{Timeout: time.Second, Retries: 5, UserAgent: "base"}
	merged := mergeOptions(base, Options{UserAgent: "override"})
	if merged.UserAgent != "override" {
		t.Errorf("UserAgent = %q", merged.UserAgent)
	}
	if merged.Timeout != time.Second || merged.Retries != 5 {
		t.Errorf("base fields lost: %+v", merged)
	}
}
