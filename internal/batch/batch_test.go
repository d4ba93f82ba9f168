package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/fetch"
	"github.com/hyperifyio/goharvest/internal/notify"
	"github.com/hyperifyio/goharvest/internal/sources"
)

// captureSink records events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *captureSink) Notify(e notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) kinds() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{}
	for _, e := range s.events {
		out[e.Kind]++
	}
	return out
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>` + r.URL.Path + `</title></head><body><p>Body text</p></body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOrchestrator(t *testing.T, sink notify.Sink) *Orchestrator {
	t.Helper()
	reg, err := sources.Open(sources.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	f := fetch.New(nil, fetch.Options{Retries: -1, BackoffBase: time.Millisecond})
	return New(f, reg, sink)
}

func TestRun_IsolatesItemFailures(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	sink := &captureSink{}
	o := newOrchestrator(t, sink)

	urls := []string{srv.URL + "/one", "not-a-url", srv.URL + "/two"}
	job := o.Run(context.Background(), urls, Options{})

	assert.Equal(t, content.JobCompleted, job.Status,
		"item failures must not fail the job")
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 2, job.Completed)
	assert.Equal(t, 1, job.Failed)
	require.Len(t, job.Results, 3)
	require.NotNil(t, job.CompletedAt)

	byURL := map[string]content.ItemResult{}
	for _, res := range job.Results {
		byURL[res.URL] = res
	}
	assert.False(t, byURL["not-a-url"].Success)
	assert.NotEmpty(t, byURL["not-a-url"].Error)
	assert.True(t, byURL[srv.URL+"/one"].Success)
	assert.NotEmpty(t, byURL[srv.URL+"/one"].SourceID)

	kinds := sink.kinds()
	assert.Equal(t, 1, kinds[notify.KindBatchStarted])
	assert.Equal(t, 3, kinds[notify.KindBatchProgress])
	assert.Equal(t, 1, kinds[notify.KindBatchFinished])
	assert.Equal(t, 1, kinds[notify.KindFetchFailed])
	assert.Equal(t, 2, kinds[notify.KindSourceAdded])
}

func TestRun_HTTPFailureCounted(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	o := newOrchestrator(t, nil)

	job := o.Run(context.Background(), []string{srv.URL + "/bad"}, Options{})
	assert.Equal(t, content.JobCompleted, job.Status)
	assert.Equal(t, 0, job.Completed)
	assert.Equal(t, 1, job.Failed)
}

func TestRun_RegistersSourcesWithDedup(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	o := newOrchestrator(t, nil)

	// Same page twice: both fetches succeed, the second registration is
	// flagged as a duplicate of the first.
	url := srv.URL + "/page"
	job := o.Run(context.Background(), []string{url, url + "?utm_source=tw"}, Options{Window: 1})

	require.Equal(t, 2, job.Completed)
	first, second := job.Results[0], job.Results[1]
	assert.Equal(t, first.SourceID, second.SourceID)
	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
}

func TestRun_RecordsUsageForModule(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	o := newOrchestrator(t, nil)

	url := srv.URL + "/page"
	job := o.Run(context.Background(), []string{url}, Options{Module: "importer"})
	require.Equal(t, 1, job.Completed)

	src, err := o.Sources.Get(context.Background(), job.Results[0].SourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Usage.TimesReferenced)
	assert.Equal(t, []string{"importer"}, src.Usage.Modules)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	o := newOrchestrator(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := o.Run(ctx, []string{srv.URL + "/one", srv.URL + "/two"}, Options{Window: 1})
	assert.Equal(t, content.JobCancelled, job.Status)
	assert.Empty(t, job.Results, "no window starts after cancellation")
	require.NotNil(t, job.CompletedAt)
}

func TestRun_CancelledDuringFinalWindow(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Cancel while the only window is in flight; the item fails, but
		// the job must still end up cancelled, not completed.
		cancel()
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>x</p></body></html>`))
	}))
	t.Cleanup(srv.Close)
	o := newOrchestrator(t, nil)

	job := o.Run(ctx, []string{srv.URL + "/only"}, Options{Window: 1})
	assert.Equal(t, content.JobCancelled, job.Status)
	require.Len(t, job.Results, 1)
	assert.False(t, job.Results[0].Success)
}

func TestSubmitAndSnapshot(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	o := newOrchestrator(t, nil)

	jobID := o.Submit(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"}, Options{})
	require.NotEmpty(t, jobID)

	deadline := time.After(5 * time.Second)
	for {
		snap, ok := o.Snapshot(jobID)
		require.True(t, ok)
		if snap.Status != content.JobProcessing {
			assert.Equal(t, content.JobCompleted, snap.Status)
			assert.Equal(t, 2, snap.Completed)
			break
		}
		select {
		case <-deadline:
			t.Fatal("job did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSnapshot_UnknownJob(t *testing.T) {
	t.Parallel()
	o := newOrchestrator(t, nil)
	_, ok := o.Snapshot("nope")
	assert.False(t, ok)
}

func TestRun_WindowLimitsConcurrency(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	inFlight, peak := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>x</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	o := newOrchestrator(t, nil)
	urls := make([]string, 6)
	for i := range urls {
		urls[i] = srv.URL + "/p" + string(rune('a'+i))
	}
	job := o.Run(context.Background(), urls, Options{Window: 2})

	require.Equal(t, 6, job.Completed)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "concurrent fetches must stay within the window")
}
