package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/goharvest/internal/content"
)

// fakeProber returns canned outcomes per URL.
type fakeProber struct {
	status  map[string]int
	latency map[string]time.Duration
	fail    map[string]error
}

func (p *fakeProber) Probe(_ context.Context, url string) (int, time.Duration, error) {
	if err := p.fail[url]; err != nil {
		return 0, 0, err
	}
	lat := p.latency[url]
	if lat == 0 {
		lat = 10 * time.Millisecond
	}
	status := p.status[url]
	if status == 0 {
		status = 200
	}
	return status, lat, nil
}

func TestHealthCheck_States(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	urls := map[string]string{
		"healthy": "https://ok.com/x",
		"slow":    "https://slow.com/x",
		"client":  "https://forbidden.com/x",
		"server":  "https://broken.com/x",
		"dead":    "https://gone.com/x",
	}
	ids := map[string]string{}
	for name, url := range urls {
		s, _, err := r.Add(ctx, NewSource{URL: url})
		require.NoError(t, err)
		ids[name] = s.ID
	}

	prober := &fakeProber{
		status:  map[string]int{urls["client"]: 403, urls["server"]: 503},
		latency: map[string]time.Duration{urls["slow"]: 5 * time.Second},
		fail:    map[string]error{urls["dead"]: errors.New("connection refused")},
	}

	results, err := r.HealthCheck(ctx, Filter{}, prober)
	require.NoError(t, err)
	require.Len(t, results, len(urls))

	byID := map[string]content.HealthResult{}
	for _, res := range results {
		byID[res.SourceID] = res
	}
	assert.Equal(t, content.HealthHealthy, byID[ids["healthy"]].State)
	assert.Equal(t, content.HealthWarning, byID[ids["slow"]].State)
	assert.Equal(t, content.HealthWarning, byID[ids["client"]].State)
	assert.Equal(t, content.HealthError, byID[ids["server"]].State)
	assert.Equal(t, content.HealthError, byID[ids["dead"]].State)

	// Only error outcomes downgrade the stored status.
	for name, want := range map[string]content.SourceStatus{
		"healthy": content.SourceActive,
		"slow":    content.SourceActive,
		"client":  content.SourceActive,
		"server":  content.SourceError,
		"dead":    content.SourceError,
	} {
		got, err := r.Get(ctx, ids[name])
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, "source %s", name)
	}
}

func TestHealthCheck_RecoveryRestoresActive(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	s, _, err := r.Add(ctx, NewSource{URL: "https://flaky.com/x"})
	require.NoError(t, err)

	down := &fakeProber{fail: map[string]error{"https://flaky.com/x": errors.New("timeout")}}
	_, err = r.HealthCheck(ctx, Filter{}, down)
	require.NoError(t, err)
	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, content.SourceError, got.Status)

	up := &fakeProber{}
	_, err = r.HealthCheck(ctx, Filter{}, up)
	require.NoError(t, err)
	got, err = r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, content.SourceActive, got.Status, "healthy probe restores an errored source")
}

func TestHealthCheck_BumpsLastChecked(t *testing.T) {
	t.Parallel()
	r := openTestRegistry(t)
	ctx := context.Background()

	s, _, err := r.Add(ctx, NewSource{URL: "https://ok.com/x"})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = r.HealthCheck(ctx, Filter{}, &fakeProber{})
	require.NoError(t, err)

	got, err := r.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.LastChecked.After(s.LastChecked), "every probe bumps last_checked")
}
