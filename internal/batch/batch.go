// Package batch orchestrates fetches over URL lists in fixed-size
// concurrency windows, isolating per-item failures and exposing pollable
// progress.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/fetch"
	"github.com/hyperifyio/goharvest/internal/notify"
	"github.com/hyperifyio/goharvest/internal/sources"
)

// DefaultWindow is the number of URLs processed concurrently.
const DefaultWindow = 3

// Options tunes one batch run.
type Options struct {
	// Window is the concurrency window size. Zero means DefaultWindow.
	Window int
	// Fetch options are applied to every item.
	Fetch fetch.Options
	// Module, when set, is recorded as a dependent of each imported
	// source.
	Module string
}

// Orchestrator runs batch jobs. One orchestrator may run many jobs; each
// job is owned by the goroutine that runs it, with snapshots served
// through a mutex for pollers.
type Orchestrator struct {
	Fetcher *fetch.Fetcher
	Sources *sources.Registry
	Sink    notify.Sink

	mu   sync.Mutex
	jobs map[string]*tracked
}

type tracked struct {
	mu  sync.Mutex
	job content.Job
}

// New wires an orchestrator. A nil sink defaults to the no-op sink.
func New(f *fetch.Fetcher, reg *sources.Registry, sink notify.Sink) *Orchestrator {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Orchestrator{
		Fetcher: f,
		Sources: reg,
		Sink:    sink,
		jobs:    make(map[string]*tracked),
	}
}

// Run processes the URL list synchronously and returns the finished job.
// Every URL is attempted exactly once; individual failures never abort
// the job. Cancelling the context stops scheduling further windows and
// marks the job cancelled.
func (o *Orchestrator) Run(ctx context.Context, urls []string, opts Options) *content.Job {
	t := o.newJob(urls)
	o.process(ctx, t, urls, opts)
	job := t.snapshot()
	return &job
}

// Submit starts a job in the background and returns its identifier for
// polling via Snapshot.
func (o *Orchestrator) Submit(ctx context.Context, urls []string, opts Options) string {
	t := o.newJob(urls)
	go o.process(ctx, t, urls, opts)
	return t.snapshot().ID
}

// Snapshot returns the current state of a job.
func (o *Orchestrator) Snapshot(jobID string) (content.Job, bool) {
	o.mu.Lock()
	t, ok := o.jobs[jobID]
	o.mu.Unlock()
	if !ok {
		return content.Job{}, false
	}
	return t.snapshot(), true
}

func (o *Orchestrator) newJob(urls []string) *tracked {
	t := &tracked{job: content.Job{
		ID:        uuid.NewString(),
		URLs:      append([]string(nil), urls...),
		Status:    content.JobProcessing,
		Total:     len(urls),
		Results:   make([]content.ItemResult, 0, len(urls)),
		CreatedAt: time.Now().UTC(),
	}}
	o.mu.Lock()
	o.jobs[t.job.ID] = t
	o.mu.Unlock()
	return t
}

func (o *Orchestrator) process(ctx context.Context, t *tracked, urls []string, opts Options) {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	jobID := t.snapshot().ID
	o.Sink.Notify(notify.New(notify.KindBatchStarted, "batch started",
		map[string]any{"job_id": jobID, "total": len(urls)}))

	for start := 0; start < len(urls); start += window {
		if ctx.Err() != nil {
			break
		}
		end := start + window
		if end > len(urls) {
			end = len(urls)
		}
		var wg sync.WaitGroup
		for _, url := range urls[start:end] {
			wg.Add(1)
			go func(url string) {
				defer wg.Done()
				res := o.processOne(ctx, url, opts)
				t.record(res)
				o.Sink.Notify(notify.New(notify.KindBatchProgress, "batch progress",
					map[string]any{"job_id": jobID, "url": url, "success": res.Success}))
			}(url)
		}
		wg.Wait()
	}

	// Re-check after the last window: a context cancelled mid-window made
	// its items fail, and reporting that as completed would be dishonest.
	job := t.finish(ctx.Err() != nil)
	o.Sink.Notify(notify.New(notify.KindBatchFinished, "batch finished", map[string]any{
		"job_id": jobID, "completed": job.Completed, "failed": job.Failed, "status": string(job.Status)}))
	log.Info().Str("job_id", jobID).Int("completed", job.Completed).
		Int("failed", job.Failed).Str("status", string(job.Status)).Msg("batch job finished")
}

// processOne performs the fetch → register sequence for one URL. All
// failure modes land in the item result; nothing escapes to siblings.
func (o *Orchestrator) processOne(ctx context.Context, url string, opts Options) content.ItemResult {
	wc := o.Fetcher.Fetch(ctx, url, opts.Fetch)
	if wc.Error != nil {
		o.Sink.Notify(notify.New(notify.KindFetchFailed, wc.Error.Message,
			map[string]any{"url": url, "code": wc.Error.Code}))
		return content.ItemResult{URL: url, Success: false, ContentID: wc.ID, Error: wc.Error.Error()}
	}

	res := content.ItemResult{URL: url, Success: true, ContentID: wc.ID}
	if o.Sources != nil {
		src, dup, err := o.Sources.AddFromContent(ctx, wc)
		if err != nil {
			// The content itself was fetched; registration failure
			// degrades the item rather than the job.
			return content.ItemResult{URL: url, Success: false, ContentID: wc.ID,
				Error: fmt.Sprintf("register source: %v", err)}
		}
		res.SourceID = src.ID
		res.Duplicate = dup
		if !dup {
			o.Sink.Notify(notify.New(notify.KindSourceAdded, "source added",
				map[string]any{"source_id": src.ID, "url": url}))
		}
		if opts.Module != "" {
			if err := o.Sources.RecordUsage(ctx, src.ID, opts.Module); err != nil {
				log.Warn().Err(err).Str("source_id", src.ID).Msg("usage record failed")
			}
		}
	}
	return res
}

// record appends an item result and bumps the counters under the job
// lock; completions may land close together from concurrent tasks.
func (t *tracked) record(res content.ItemResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.job.Results = append(t.job.Results, res)
	if res.Success {
		t.job.Completed++
	} else {
		t.job.Failed++
	}
}

func (t *tracked) finish(cancelled bool) content.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.job.CompletedAt = &now
	if cancelled {
		t.job.Status = content.JobCancelled
	} else {
		t.job.Status = content.JobCompleted
	}
	return t.job
}

func (t *tracked) snapshot() content.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := t.job
	job.Results = append([]content.ItemResult(nil), t.job.Results...)
	return job
}
