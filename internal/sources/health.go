package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/content"
)

// Prober performs a reachability probe against a source URL. A no-network
// implementation can be substituted in headless or test setups.
type Prober interface {
	Probe(ctx context.Context, url string) (status int, latency time.Duration, err error)
}

// HTTPProber probes with a HEAD request, falling back to GET when HEAD is
// rejected outright.
type HTTPProber struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
}

func (p *HTTPProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *HTTPProber) Probe(ctx context.Context, url string) (int, time.Duration, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status, err := p.do(ctx, http.MethodHead, url)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = p.do(ctx, http.MethodGet, url)
	}
	return status, time.Since(start), err
}

func (p *HTTPProber) do(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	if p.UserAgent != "" {
		req.Header.Set("User-Agent", p.UserAgent)
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// warnLatency is the probe latency beyond which a reachable source is
// classified as warning.
const warnLatency = 2 * time.Second

// HealthCheck probes each source matching the filter and updates its
// record. Only error outcomes downgrade a source's status; warnings are
// advisory. A previously errored source that probes healthy is restored
// to active. LastChecked is bumped for every probed source.
func (r *Registry) HealthCheck(ctx context.Context, f Filter, prober Prober) ([]content.HealthResult, error) {
	if prober == nil {
		prober = &HTTPProber{}
	}
	list, err := r.List(ctx, f)
	if err != nil {
		return nil, err
	}

	results := make([]content.HealthResult, 0, len(list))
	for _, src := range list {
		status, latency, probeErr := prober.Probe(ctx, src.URL)
		res := content.HealthResult{
			SourceID:  src.ID,
			URL:       src.URL,
			Latency:   latency,
			Status:    status,
			CheckedAt: time.Now().UTC(),
		}
		switch {
		case probeErr != nil:
			res.State = content.HealthError
			res.Detail = probeErr.Error()
		case status >= 500:
			res.State = content.HealthError
			res.Detail = "server error"
		case status >= 400:
			res.State = content.HealthWarning
			res.Detail = "client error from origin"
		case latency > warnLatency:
			res.State = content.HealthWarning
			res.Detail = "slow response"
		default:
			res.State = content.HealthHealthy
		}

		var newStatus *content.SourceStatus
		if res.State == content.HealthError && src.Status != content.SourceError {
			s := content.SourceError
			newStatus = &s
		} else if res.State == content.HealthHealthy && src.Status == content.SourceError {
			s := content.SourceActive
			newStatus = &s
		}
		if _, err := r.Update(ctx, src.ID, Updates{Status: newStatus}); err != nil {
			log.Warn().Err(err).Str("id", src.ID).Msg("health check record update failed")
		}
		results = append(results, res)
	}
	return results, nil
}
