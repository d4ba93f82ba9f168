package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hyperifyio/goharvest/internal/batch"
	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/fetch"
	"github.com/hyperifyio/goharvest/internal/sources"
)

// RegisterMCP registers the tool surface on an MCP server. Every tool
// returns the JSON envelope as text content; operation failures are
// carried inside the envelope, protocol errors are reserved for
// malformed calls.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerFetchTool(srv)
	s.registerBatchTool(srv)
	s.registerSourcesTool(srv)
	s.registerQualityTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// addTool wires a decoded handler onto the server, centralizing argument
// decoding and envelope marshalling.
func addTool[T any](srv *mcp.Server, tool *mcp.Tool, handle func(context.Context, T) Envelope) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if req.Params.Arguments != nil {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		env := handle(ctx, args)
		data, err := json.Marshal(env)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal result: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- fetch_web_content ---

type fetchArgs struct {
	URL         string `json:"url"`
	TimeoutMS   int    `json:"timeout_ms"`
	Retries     int    `json:"retries"`
	BypassCache bool   `json:"bypass_cache"`
	MaxBlocks   int    `json:"max_blocks"`
}

func (s *Service) registerFetchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "fetch_web_content",
		Description: "Fetch a URL and normalize it into typed content blocks with metadata.",
		InputSchema: inputSchema(map[string]any{
			"url":          map[string]any{"type": "string", "description": "HTTP(S) URL to fetch"},
			"timeout_ms":   map[string]any{"type": "integer", "description": "Per-attempt timeout in milliseconds"},
			"retries":      map[string]any{"type": "integer", "description": "Extra attempts after the first; -1 disables retrying"},
			"bypass_cache": map[string]any{"type": "boolean", "description": "Fetch fresh even when a cached copy exists"},
			"max_blocks":   map[string]any{"type": "integer", "description": "Cap on extracted blocks, 0 for unlimited"},
		}, []string{"url"}),
	}
	addTool(srv, tool, func(ctx context.Context, a fetchArgs) Envelope {
		opts := fetch.Options{
			Timeout:     time.Duration(a.TimeoutMS) * time.Millisecond,
			Retries:     a.Retries,
			BypassCache: a.BypassCache,
			MaxBlocks:   a.MaxBlocks,
		}
		return s.FetchWebContent(ctx, a.URL, opts)
	})
}

// --- batch_import_urls ---

type batchArgs struct {
	URLs   []string `json:"urls"`
	Window int      `json:"window"`
	Module string   `json:"module"`
}

func (s *Service) registerBatchTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "batch_import_urls",
		Description: "Fetch a list of URLs concurrently and register each as a content source. Individual failures never abort the batch.",
		InputSchema: inputSchema(map[string]any{
			"urls":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "URLs to import"},
			"window": map[string]any{"type": "integer", "description": "Concurrency window size, default 3"},
			"module": map[string]any{"type": "string", "description": "Module name recorded as a dependent of each source"},
		}, []string{"urls"}),
	}
	addTool(srv, tool, func(ctx context.Context, a batchArgs) Envelope {
		return s.BatchImportURLs(ctx, a.URLs, batch.Options{Window: a.Window, Module: a.Module})
	})
}

// --- manage_content_sources ---

type sourcesArgs struct {
	Action         string   `json:"action"`
	SourceID       string   `json:"source_id"`
	Domain         string   `json:"domain"`
	Category       string   `json:"category"`
	Status         string   `json:"status"`
	IDs            []string `json:"ids"`
	IncludeRemoved bool     `json:"include_removed"`
	Path           string   `json:"path"`

	// Update-action fields. Status and category double as the new values
	// when the action is update.
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	ContentHash string   `json:"content_hash"`
	WordCount   int      `json:"word_count"`
}

func (s *Service) registerSourcesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "manage_content_sources",
		Description: "Operate on the source registry: list, get, update, remove, validate, health, duplicates, import.",
		InputSchema: inputSchema(map[string]any{
			"action":          map[string]any{"type": "string", "enum": []string{"list", "get", "update", "remove", "validate", "health", "duplicates", "import"}},
			"source_id":       map[string]any{"type": "string", "description": "Source identifier for get/update/remove/validate"},
			"domain":          map[string]any{"type": "string", "description": "Filter by domain"},
			"category":        map[string]any{"type": "string", "description": "Filter by category, or the new category for update"},
			"status":          map[string]any{"type": "string", "description": "Filter by status, or the new status for update"},
			"ids":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Filter by identifiers"},
			"include_removed": map[string]any{"type": "boolean", "description": "Include removed sources in listings"},
			"path":            map[string]any{"type": "string", "description": "Spreadsheet path for the import action"},
			"title":           map[string]any{"type": "string", "description": "New title for the update action"},
			"tags":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "New tags for the update action"},
			"content_hash":    map[string]any{"type": "string", "description": "New content hash for the update action"},
			"word_count":      map[string]any{"type": "integer", "description": "New word count for the update action"},
		}, []string{"action"}),
	}
	addTool(srv, tool, func(ctx context.Context, a sourcesArgs) Envelope {
		if a.Action == "import" {
			return s.ImportSources(ctx, a.Path)
		}
		f := sources.Filter{
			Domain:         a.Domain,
			Category:       a.Category,
			Status:         content.SourceStatus(a.Status),
			IDs:            a.IDs,
			IncludeRemoved: a.IncludeRemoved,
		}
		var u sources.Updates
		if SourceAction(a.Action) == ActionUpdate {
			if a.Title != "" {
				u.Title = &a.Title
			}
			if a.Status != "" {
				st := content.SourceStatus(a.Status)
				u.Status = &st
			}
			if a.Category != "" {
				u.Category = &a.Category
			}
			if len(a.Tags) > 0 {
				u.Tags = a.Tags
			}
			if a.ContentHash != "" {
				u.ContentHash = &a.ContentHash
			}
			if a.WordCount > 0 {
				u.WordCount = &a.WordCount
			}
		}
		return s.ManageContentSources(ctx, SourceAction(a.Action), a.SourceID, f, u)
	})
}

// --- validate_content_quality ---

type qualityArgs struct {
	ContentID string   `json:"content_id"`
	Checks    []string `json:"checks"`
}

func (s *Service) registerQualityTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "validate_content_quality",
		Description: "Run quality checks (readability, completeness, metadata, freshness) against previously fetched content.",
		InputSchema: inputSchema(map[string]any{
			"content_id": map[string]any{"type": "string", "description": "Deterministic content identifier from a prior fetch"},
			"checks":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Check names; empty runs all"},
		}, []string{"content_id"}),
	}
	addTool(srv, tool, func(ctx context.Context, a qualityArgs) Envelope {
		return s.ValidateContentQuality(ctx, a.ContentID, a.Checks)
	})
}

// Serve runs the MCP server over stdio until the context is cancelled.
func (s *Service) Serve(ctx context.Context, name, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
