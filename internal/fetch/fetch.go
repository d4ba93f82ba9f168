// Package fetch retrieves URLs and normalizes them into web content.
//
// Fetch never returns an error: every failure mode is encoded as a
// WebContent value with a populated error descriptor, so batch callers
// can treat all outcomes uniformly.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/cache"
	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/contenttype"
	"github.com/hyperifyio/goharvest/internal/extract"
)

// Defaults for per-call options.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 3
	DefaultBackoffBase = 1 * time.Second
	DefaultUserAgent   = "goharvest/1.0 (+https://github.com/hyperifyio/goharvest)"
	DefaultMaxBodySize = 10 << 20
)

// Options tunes a single fetch. Zero values fall back to the documented
// defaults; a negative Retries disables retrying entirely.
type Options struct {
	// Timeout bounds each network attempt, not the whole fetch.
	Timeout time.Duration
	// Retries is the number of additional attempts after the first.
	Retries int
	// BackoffBase is the delay before the first retry; it doubles on
	// each subsequent attempt.
	BackoffBase time.Duration
	UserAgent   string
	// BypassCache fetches fresh but still writes the result through.
	BypassCache bool
	// MaxBlocks caps extraction output. Zero means unlimited.
	MaxBlocks int
	// MaxBodySize caps the read body in bytes.
	MaxBodySize int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = DefaultRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = DefaultMaxBodySize
	}
	return o
}

// Fetcher performs retrying, timeout-bounded retrieval with a
// write-through TTL cache and extraction dispatch. It never mutates the
// source registry; that is the caller's concern.
type Fetcher struct {
	HTTPClient *http.Client
	Registry   *extract.Registry
	Cache      *cache.ContentCache
	Defaults   Options
	// RedirectMaxHops caps redirect following. Zero means default (5).
	RedirectMaxHops int
}

// New returns a Fetcher with the standard extractor registry.
func New(c *cache.ContentCache, defaults Options) *Fetcher {
	return &Fetcher{
		Registry: extract.NewRegistry(),
		Cache:    c,
		Defaults: defaults,
	}
}

// ValidateURL rejects malformed or non-HTTP(S) URLs before any I/O.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL missing host")
	}
	return nil
}

// Fetch retrieves one URL. The returned WebContent always carries the
// deterministic content identifier for the URL; failures populate the
// error descriptor and leave the block list empty.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) *content.WebContent {
	start := time.Now()
	opts = mergeOptions(f.Defaults, opts).withDefaults()

	wc := &content.WebContent{
		ID:        content.ContentID(rawURL),
		URL:       rawURL,
		Blocks:    []content.Block{},
		FetchedAt: start.UTC(),
	}

	if err := ValidateURL(rawURL); err != nil {
		wc.Error = &content.FetchError{Code: content.ErrCodeValidation, Message: err.Error()}
		wc.Duration = time.Since(start)
		return wc
	}

	if f.Cache != nil && !opts.BypassCache {
		if cached, ok, err := f.Cache.Load(ctx, wc.ID); err == nil && ok {
			log.Debug().Str("url", rawURL).Msg("cache hit")
			return cached
		}
	}

	body, resp, ferr := f.getWithRetry(ctx, rawURL, opts)
	if ferr != nil {
		wc.Error = ferr
		if resp != nil {
			wc.StatusCode = resp.StatusCode
		}
		wc.Duration = time.Since(start)
		return wc
	}

	wc.StatusCode = resp.StatusCode
	wc.Headers = flattenHeaders(resp.Header)

	info := contenttype.FromResponse(resp.Header, body)
	res := f.Registry.Extract(ctx, body, rawURL, info, extract.Options{
		FetchedAt: wc.FetchedAt,
		MaxBlocks: opts.MaxBlocks,
	})
	if !res.Success {
		wc.Error = &content.FetchError{Code: content.ErrCodeExtraction, Message: res.Error}
	} else {
		wc.Metadata = res.Metadata
		wc.Text = res.Text
		wc.HTML = res.HTML
		wc.Blocks = res.Blocks
	}
	wc.Duration = time.Since(start)

	if f.Cache != nil && wc.Error == nil {
		if err := f.Cache.Save(ctx, wc); err != nil {
			log.Warn().Err(err).Str("url", rawURL).Msg("cache write failed")
		}
	}
	return wc
}

// getWithRetry runs the bounded retry loop: connection and timeout
// failures retry with exponentially increasing delay, a non-2xx status is
// terminal on the spot.
func (f *Fetcher) getWithRetry(ctx context.Context, rawURL string, opts Options) ([]byte, *http.Response, *content.FetchError) {
	attempts := opts.Retries + 1
	delay := opts.BackoffBase
	var lastErr *content.FetchError

	for i := 0; i < attempts; i++ {
		body, resp, err := f.tryOnce(ctx, rawURL, opts)
		if err == nil {
			return body, resp, nil
		}

		ferr := classify(err)
		if ferr.Code == content.ErrCodeHTTP {
			return nil, resp, ferr
		}
		lastErr = ferr
		if i == attempts-1 {
			break
		}
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", i+1).Dur("backoff", delay).Msg("retrying fetch")
		select {
		case <-ctx.Done():
			return nil, nil, &content.FetchError{Code: content.ErrCodeNetwork, Message: ctx.Err().Error()}
		case <-time.After(delay):
		}
		delay *= 2
	}
	if lastErr == nil {
		lastErr = &content.FetchError{Code: content.ErrCodeNetwork, Message: "fetch failed"}
	}
	return nil, nil, lastErr
}

// errHTTPStatus marks terminal non-2xx responses inside the retry loop.
type errHTTPStatus struct{ status int }

func (e *errHTTPStatus) Error() string { return fmt.Sprintf("unexpected status: %d", e.status) }

func (f *Fetcher) tryOnce(ctx context.Context, rawURL string, opts Options) ([]byte, *http.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, &errHTTPStatus{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBodySize))
	if err != nil {
		return nil, resp, fmt.Errorf("read body: %w", err)
	}
	return body, resp, nil
}

func (f *Fetcher) httpClient() *http.Client {
	if f.HTTPClient != nil {
		// Clone to attach the redirect policy without mutating the
		// caller's client.
		base := *f.HTTPClient
		base.CheckRedirect = f.checkRedirectFunc()
		return &base
	}
	return &http.Client{CheckRedirect: f.checkRedirectFunc()}
}

func (f *Fetcher) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	maxHops := f.RedirectMaxHops
	if maxHops <= 0 {
		maxHops = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return errors.New("too many redirects")
		}
		if req.URL == nil || (req.URL.Scheme != "http" && req.URL.Scheme != "https") {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

// classify maps a transport error onto the error taxonomy.
func classify(err error) *content.FetchError {
	var statusErr *errHTTPStatus
	if errors.As(err, &statusErr) {
		return &content.FetchError{
			Code:    content.ErrCodeHTTP,
			Message: fmt.Sprintf("HTTP %d from server", statusErr.status),
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &content.FetchError{Code: content.ErrCodeTimeout, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &content.FetchError{Code: content.ErrCodeTimeout, Message: "request timed out"}
	}
	return &content.FetchError{Code: content.ErrCodeNetwork, Message: err.Error()}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func mergeOptions(base, override Options) Options {
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	if override.Retries != 0 {
		base.Retries = override.Retries
	}
	if override.BackoffBase > 0 {
		base.BackoffBase = override.BackoffBase
	}
	if override.UserAgent != "" {
		base.UserAgent = override.UserAgent
	}
	if override.BypassCache {
		base.BypassCache = true
	}
	if override.MaxBlocks > 0 {
		base.MaxBlocks = override.MaxBlocks
	}
	if override.MaxBodySize > 0 {
		base.MaxBodySize = override.MaxBodySize
	}
	return base
}
