// Package tools is the inbound surface consumed by UI and automation
// layers. Every operation returns a structured envelope; success:false is
// a result, never a raised error.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperifyio/goharvest/internal/batch"
	"github.com/hyperifyio/goharvest/internal/cache"
	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/fetch"
	"github.com/hyperifyio/goharvest/internal/notify"
	"github.com/hyperifyio/goharvest/internal/sources"
)

// Envelope is the uniform operation result.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func ok(data any) Envelope {
	return Envelope{Success: true, Data: data, Timestamp: time.Now().UTC()}
}

func fail(format string, args ...any) Envelope {
	return Envelope{Success: false, Error: fmt.Sprintf(format, args...), Timestamp: time.Now().UTC()}
}

// Service bundles the pipeline components behind the tool operations.
type Service struct {
	Fetcher *fetch.Fetcher
	Sources *sources.Registry
	Batch   *batch.Orchestrator
	Cache   *cache.ContentCache
	// Sink receives lifecycle events for source removals and degraded
	// health results. Nil means no notifications.
	Sink notify.Sink
}

func (s *Service) notify(e notify.Event) {
	if s.Sink != nil {
		s.Sink.Notify(e)
	}
}

// FetchWebContent fetches one URL. The envelope succeeds whenever the
// pipeline ran; a failed fetch is reported inside the WebContent error
// descriptor so callers see status and diagnostics together.
func (s *Service) FetchWebContent(ctx context.Context, url string, opts fetch.Options) Envelope {
	if url == "" {
		return fail("url is required")
	}
	wc := s.Fetcher.Fetch(ctx, url, opts)
	return ok(wc)
}

// BatchImportURLs runs a synchronous batch job over the URL list.
func (s *Service) BatchImportURLs(ctx context.Context, urls []string, opts batch.Options) Envelope {
	if len(urls) == 0 {
		return fail("at least one url is required")
	}
	job := s.Batch.Run(ctx, urls, opts)
	return ok(job)
}

// SourceAction names a ManageContentSources operation.
type SourceAction string

const (
	ActionList       SourceAction = "list"
	ActionGet        SourceAction = "get"
	ActionUpdate     SourceAction = "update"
	ActionRemove     SourceAction = "remove"
	ActionValidate   SourceAction = "validate"
	ActionHealth     SourceAction = "health"
	ActionDuplicates SourceAction = "duplicates"
)

// ManageContentSources dispatches registry operations by action name. The
// updates argument is consulted only by the update action.
func (s *Service) ManageContentSources(ctx context.Context, action SourceAction, sourceID string, f sources.Filter, u sources.Updates) Envelope {
	switch action {
	case ActionList:
		list, err := s.Sources.List(ctx, f)
		if err != nil {
			return fail("list sources: %v", err)
		}
		return ok(list)
	case ActionGet:
		if sourceID == "" {
			return fail("sourceId is required for action %q", action)
		}
		src, err := s.Sources.Get(ctx, sourceID)
		if err != nil {
			return fail("get source: %v", err)
		}
		return ok(src)
	case ActionUpdate:
		if sourceID == "" {
			return fail("sourceId is required for action %q", action)
		}
		diff, err := s.Sources.Update(ctx, sourceID, u)
		if err != nil {
			return fail("update source: %v", err)
		}
		return ok(diff)
	case ActionRemove:
		if sourceID == "" {
			return fail("sourceId is required for action %q", action)
		}
		if err := s.Sources.Remove(ctx, sourceID); err != nil {
			return fail("remove source: %v", err)
		}
		s.notify(notify.New(notify.KindSourceRemoved, "source removed",
			map[string]any{"source_id": sourceID}))
		return ok(map[string]any{"removed": sourceID})
	case ActionValidate:
		var ids []string
		if sourceID != "" {
			ids = []string{sourceID}
		} else {
			ids = f.IDs
		}
		issues, err := s.Sources.Validate(ctx, ids)
		if err != nil {
			return fail("validate sources: %v", err)
		}
		return ok(map[string]any{"issues": issues, "valid": len(issues) == 0})
	case ActionHealth:
		results, err := s.Sources.HealthCheck(ctx, f, nil)
		if err != nil {
			return fail("health check: %v", err)
		}
		for _, res := range results {
			if res.State == content.HealthError {
				s.notify(notify.New(notify.KindHealthDegraded, res.Detail,
					map[string]any{"source_id": res.SourceID, "url": res.URL}))
			}
		}
		return ok(results)
	case ActionDuplicates:
		groups, err := s.Sources.DetectDuplicates(ctx)
		if err != nil {
			return fail("detect duplicates: %v", err)
		}
		return ok(groups)
	default:
		return fail("unknown action %q", action)
	}
}

// ImportSources registers sources from a spreadsheet without fetching
// them. Kept separate from ManageContentSources because it takes a file
// path rather than a source filter.
func (s *Service) ImportSources(ctx context.Context, path string) Envelope {
	if path == "" {
		return fail("path is required")
	}
	report, err := s.Sources.ImportExcel(ctx, path)
	if err != nil {
		return fail("import spreadsheet: %v", err)
	}
	return ok(report)
}

// ValidateContentQuality runs the requested checks against previously
// fetched content. Unknown contentID is a failure; unknown check names
// are reported per check.
func (s *Service) ValidateContentQuality(ctx context.Context, contentID string, checks []string) Envelope {
	if contentID == "" {
		return fail("contentId is required")
	}
	if s.Cache == nil {
		return fail("no content cache configured")
	}
	wc, found, err := s.Cache.Load(ctx, contentID)
	if err != nil {
		return fail("load content: %v", err)
	}
	if !found {
		return fail("content %s not found in cache", contentID)
	}
	if len(checks) == 0 {
		checks = []string{CheckReadability, CheckCompleteness, CheckMetadata, CheckFreshness}
	}
	report := runQualityChecks(wc, checks)
	return ok(report)
}
