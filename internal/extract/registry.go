// Package extract turns raw fetched payloads into ordered content blocks.
//
// Extraction strategies are pluggable: each Extractor declares what it can
// handle and the Registry dispatches to the first registered match, with a
// catch-all fallback guaranteeing that extraction always produces a result.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/content"
	"github.com/hyperifyio/goharvest/internal/contenttype"
)

// Options tunes a single extraction.
type Options struct {
	// FetchedAt is copied into each block's created/modified stamps.
	FetchedAt time.Time
	// MaxBlocks caps the number of emitted blocks. Zero means unlimited.
	MaxBlocks int
}

// Result is the outcome of one extraction. A failed extraction still
// carries defaulted metadata so callers never have to special-case it.
type Result struct {
	Success   bool             `json:"success"`
	Blocks    []content.Block  `json:"blocks"`
	Metadata  content.Metadata `json:"metadata"`
	Text      string           `json:"text,omitempty"`
	HTML      string           `json:"html,omitempty"`
	Domain    string           `json:"domain,omitempty"`
	WordCount int              `json:"word_count"`
	Category  string           `json:"category,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Extractor is one pluggable extraction strategy.
type Extractor interface {
	Name() string
	// CanHandle reports whether this extractor applies to the given URL
	// and detected content type.
	CanHandle(rawURL string, info contenttype.Info) bool
	// Extract converts a raw payload into a Result. Returned errors are
	// absorbed by the Registry; they never propagate to batch callers.
	Extract(ctx context.Context, raw []byte, rawURL string, opts Options) (Result, error)
}

// Registry holds extractors in registration order. Dispatch is a
// deliberate first-match policy with no specificity ranking; the fallback
// registered last must always match.
type Registry struct {
	extractors []Extractor
	fallback   Extractor
}

// NewRegistry returns a registry preloaded with the standard extractors:
// HTML, JSON, plain text, and the generic fallback.
func NewRegistry() *Registry {
	r := &Registry{fallback: &Fallback{}}
	r.Register(NewHTML())
	r.Register(&JSON{})
	r.Register(&Text{})
	return r
}

// Register appends an extractor. Earlier registrations win ties.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// Find returns the first extractor whose CanHandle accepts the input,
// defaulting to the fallback.
func (r *Registry) Find(rawURL string, info contenttype.Info) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(rawURL, info) {
			return e
		}
	}
	return r.fallback
}

// Extract dispatches to the matching extractor and absorbs any failure
// into a success:false Result carrying defaulted metadata. Extraction
// failure must never abort a batch.
func (r *Registry) Extract(ctx context.Context, raw []byte, rawURL string, info contenttype.Info, opts Options) Result {
	e := r.Find(rawURL, info)
	res, err := e.Extract(ctx, raw, rawURL, opts)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Str("extractor", e.Name()).Msg("extraction failed; degrading")
		return degradedResult(rawURL, err)
	}
	if res.Domain == "" {
		res.Domain = DomainOf(rawURL)
	}
	if res.Category == "" {
		res.Category = "general"
	}
	if opts.MaxBlocks > 0 && len(res.Blocks) > opts.MaxBlocks {
		res.Blocks = res.Blocks[:opts.MaxBlocks]
	}
	return res
}

func degradedResult(rawURL string, err error) Result {
	return Result{
		Success:   false,
		Blocks:    []content.Block{},
		Domain:    DomainOf(rawURL),
		WordCount: 0,
		Category:  "general",
		Error:     fmt.Sprintf("extraction failed: %v", err),
	}
}

// DomainOf returns the lowercased host of a URL, or "" when unparseable.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// countWords is the shared word-count heuristic for text payloads.
func countWords(s string) int {
	return len(strings.Fields(s))
}
