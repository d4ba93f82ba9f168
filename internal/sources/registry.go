package sources

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goharvest/internal/content"
)

// ErrNotFound is returned when a source identifier resolves to nothing.
var ErrNotFound = errors.New("source not found")

// Config tunes registry behavior.
type Config struct {
	// Path is the SQLite database location; empty means in-memory.
	Path    string
	Weights SimilarityWeights
}

// Registry owns the source records and their shared indexes. All writes
// go through the registry mutex so concurrent batch tasks cannot lose
// index entries.
type Registry struct {
	db      *sql.DB
	weights SimilarityWeights

	mu       sync.Mutex
	byDomain map[string]int // live source count per domain
}

// Open opens (creating if needed) the registry database and rebuilds the
// in-memory domain index.
func Open(cfg Config) (*Registry, error) {
	db, err := openDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open source registry: %w", err)
	}
	w := cfg.Weights
	if w.Threshold == 0 {
		w = DefaultWeights()
	}
	r := &Registry{db: db, weights: w, byDomain: make(map[string]int)}
	if err := r.rebuildIndexes(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying database.
func (r *Registry) Close() error { return r.db.Close() }

func (r *Registry) rebuildIndexes(ctx context.Context) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT domain, COUNT(*) FROM sources WHERE status != 'removed' GROUP BY domain`)
	if err != nil {
		return fmt.Errorf("rebuild indexes: %w", err)
	}
	defer rows.Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			return err
		}
		r.byDomain[domain] = n
	}
	return rows.Err()
}

// DomainCounts returns a snapshot of live sources per domain.
func (r *Registry) DomainCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.byDomain))
	for k, v := range r.byDomain {
		out[k] = v
	}
	return out
}

// SourceID derives the stable identifier for a URL. One canonical URL
// maps to exactly one live source.
func SourceID(rawURL string) string {
	h := sha256.Sum256([]byte("source:" + CanonicalURL(rawURL)))
	return hex.EncodeToString(h[:16])
}

// NewSource carries the caller-supplied fields for registration.
type NewSource struct {
	URL      string
	Title    string
	Metadata content.SourceMetadata
}

// Add registers a source. When a live record already exists for the same
// canonical URL the existing record is returned with duplicate=true;
// duplicates are a first-class successful outcome, not an error.
func (r *Registry) Add(ctx context.Context, ns NewSource) (content.Source, bool, error) {
	if strings.TrimSpace(ns.URL) == "" {
		return content.Source{}, false, errors.New("source URL required")
	}
	canonical := CanonicalURL(ns.URL)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.getByCanonical(ctx, canonical)
	if err == nil {
		// A refetch that carries a different content hash is a content
		// change: record the fresh hash and word count, which flips the
		// source to updated.
		if h := ns.Metadata.ContentHash; h != "" && h != existing.Metadata.ContentHash {
			u := Updates{ContentHash: &h}
			if ns.Metadata.WordCount > 0 {
				wc := ns.Metadata.WordCount
				u.WordCount = &wc
			}
			diff, uerr := r.updateLocked(ctx, existing.ID, u)
			if uerr != nil {
				return content.Source{}, false, uerr
			}
			return diff.After, true, nil
		}
		// Duplicate import with unchanged content still counts as a touch.
		now := time.Now().UTC()
		_, uerr := r.db.ExecContext(ctx,
			`UPDATE sources SET last_checked = ? WHERE id = ?`, now.UnixMilli(), existing.ID)
		if uerr == nil {
			existing.LastChecked = now
		}
		return existing, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return content.Source{}, false, err
	}

	// A removed record keeps the deterministic identifier, so importing
	// the same URL again revives it instead of inserting a conflict.
	if prev, gerr := r.Get(ctx, SourceID(ns.URL)); gerr == nil && prev.Status == content.SourceRemoved {
		return r.revive(ctx, prev, ns)
	}

	now := time.Now().UTC()
	src := content.Source{
		ID:          SourceID(ns.URL),
		URL:         ns.URL,
		Domain:      DomainOf(ns.URL),
		Title:       strings.TrimSpace(ns.Title),
		ImportedAt:  now,
		LastChecked: now,
		Status:      content.SourceActive,
		Metadata:    ns.Metadata,
		Usage:       content.UsageStats{},
	}
	metaJSON, err := encodeJSON(src.Metadata)
	if err != nil {
		return content.Source{}, false, fmt.Errorf("encode metadata: %w", err)
	}
	usageJSON, err := encodeJSON(src.Usage)
	if err != nil {
		return content.Source{}, false, fmt.Errorf("encode usage: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.URL, canonical, src.Domain, src.Title, string(src.Status),
		src.ImportedAt.UnixMilli(), src.LastChecked.UnixMilli(), metaJSON, usageJSON)
	if err != nil {
		return content.Source{}, false, fmt.Errorf("insert source: %w", err)
	}
	r.byDomain[src.Domain]++
	log.Debug().Str("id", src.ID).Str("url", src.URL).Msg("source registered")
	return src, false, nil
}

func (r *Registry) revive(ctx context.Context, prev content.Source, ns NewSource) (content.Source, bool, error) {
	now := time.Now().UTC()
	src := prev
	src.Status = content.SourceActive
	src.LastChecked = now
	if ns.Title != "" {
		src.Title = strings.TrimSpace(ns.Title)
	}
	metaJSON, err := encodeJSON(src.Metadata)
	if err != nil {
		return content.Source{}, false, fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sources SET title = ?, status = ?, metadata = ?, last_checked = ?
		WHERE id = ?`,
		src.Title, string(src.Status), metaJSON, now.UnixMilli(), src.ID)
	if err != nil {
		return content.Source{}, false, fmt.Errorf("revive source: %w", err)
	}
	r.byDomain[src.Domain]++
	log.Debug().Str("id", src.ID).Str("url", src.URL).Msg("removed source revived")
	return src, false, nil
}

// AddFromContent registers (or touches) a source built from a successful
// fetch result.
func (r *Registry) AddFromContent(ctx context.Context, wc *content.WebContent) (content.Source, bool, error) {
	if wc == nil {
		return content.Source{}, false, errors.New("nil content")
	}
	meta := content.SourceMetadata{
		Author:      wc.Metadata.Author,
		Tags:        wc.Metadata.Tags,
		WordCount:   len(strings.Fields(wc.Text)),
		ContentHash: hashText(wc.Text),
	}
	// 200 words per minute reading speed, rounded up.
	if meta.WordCount > 0 {
		meta.ReadingTime = (meta.WordCount + 199) / 200
	}
	if len(wc.Metadata.Tags) > 0 {
		meta.Category = wc.Metadata.Tags[0]
	} else {
		meta.Category = "general"
	}
	return r.Add(ctx, NewSource{URL: wc.URL, Title: wc.Metadata.Title, Metadata: meta})
}

func hashText(text string) string {
	if text == "" {
		return ""
	}
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func (r *Registry) getByCanonical(ctx context.Context, canonical string) (content.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE canonical_url = ? AND status != 'removed'`,
		canonical)
	src, err := scanSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Source{}, ErrNotFound
	}
	return src, err
}

// Get returns one source by identifier, including removed records.
func (r *Registry) Get(ctx context.Context, id string) (content.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Source{}, ErrNotFound
	}
	return src, err
}

// Filter narrows List and HealthCheck. Zero values match everything.
// Removed sources are excluded unless IncludeRemoved is set.
type Filter struct {
	Domain         string
	Category       string
	Status         content.SourceStatus
	IDs            []string
	IncludeRemoved bool
}

// List returns sources matching the filter, newest import first.
func (r *Registry) List(ctx context.Context, f Filter) ([]content.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE 1=1`
	args := []any{}
	if !f.IncludeRemoved {
		query += ` AND status != 'removed'`
	}
	if f.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, strings.ToLower(f.Domain))
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if len(f.IDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(",?", len(f.IDs)-1) + `)`
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY imported_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make([]content.Source, 0, 16)
	for rows.Next() {
		src, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		// Category lives inside the metadata JSON; filter after decode.
		if f.Category != "" && src.Metadata.Category != f.Category {
			continue
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Updates lists the mutable fields for Update. Nil fields are untouched.
type Updates struct {
	Title       *string
	Status      *content.SourceStatus
	Category    *string
	Tags        []string
	ContentHash *string
	WordCount   *int
}

// Update applies changes to a source and returns an explicit before/after
// diff. LastChecked is bumped on every update whether or not content
// changed.
func (r *Registry) Update(ctx context.Context, id string, u Updates) (content.SourceDiff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(ctx, id, u)
}

// updateLocked is Update's body; the caller holds r.mu.
func (r *Registry) updateLocked(ctx context.Context, id string, u Updates) (content.SourceDiff, error) {
	before, err := r.Get(ctx, id)
	if err != nil {
		return content.SourceDiff{}, err
	}
	after := before
	if u.Title != nil {
		after.Title = strings.TrimSpace(*u.Title)
	}
	if u.Status != nil {
		after.Status = *u.Status
	}
	if u.Category != nil {
		after.Metadata.Category = *u.Category
	}
	if u.Tags != nil {
		after.Metadata.Tags = u.Tags
	}
	if u.ContentHash != nil {
		if *u.ContentHash != before.Metadata.ContentHash && before.Metadata.ContentHash != "" {
			// Content changed since import.
			after.Status = content.SourceUpdated
		}
		after.Metadata.ContentHash = *u.ContentHash
	}
	if u.WordCount != nil {
		after.Metadata.WordCount = *u.WordCount
		if *u.WordCount > 0 {
			after.Metadata.ReadingTime = (*u.WordCount + 199) / 200
		}
	}
	after.LastChecked = time.Now().UTC()

	metaJSON, err := encodeJSON(after.Metadata)
	if err != nil {
		return content.SourceDiff{}, fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sources SET title = ?, status = ?, metadata = ?, last_checked = ?
		WHERE id = ?`,
		after.Title, string(after.Status), metaJSON, after.LastChecked.UnixMilli(), id)
	if err != nil {
		return content.SourceDiff{}, fmt.Errorf("update source: %w", err)
	}
	if before.Status != content.SourceRemoved && after.Status == content.SourceRemoved {
		r.decrementDomain(before.Domain)
	}
	return content.SourceDiff{Before: before, After: after}, nil
}

// Remove marks a source removed. The record is retained; data is never
// silently lost.
func (r *Registry) Remove(ctx context.Context, id string) error {
	removed := content.SourceRemoved
	_, err := r.Update(ctx, id, Updates{Status: &removed})
	return err
}

func (r *Registry) decrementDomain(domain string) {
	if n := r.byDomain[domain]; n > 1 {
		r.byDomain[domain] = n - 1
	} else {
		delete(r.byDomain, domain)
	}
}

// RecordUsage increments the reference counter and attaches the dependent
// module if it is new.
func (r *Registry) RecordUsage(ctx context.Context, id, module string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	src.Usage.TimesReferenced++
	now := time.Now().UTC()
	src.Usage.LastAccessed = &now
	if module != "" && !contains(src.Usage.Modules, module) {
		src.Usage.Modules = append(src.Usage.Modules, module)
	}
	usageJSON, err := encodeJSON(src.Usage)
	if err != nil {
		return fmt.Errorf("encode usage: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE sources SET usage = ? WHERE id = ?`, usageJSON, id)
	return err
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ValidationIssue describes one malformed source record.
type ValidationIssue struct {
	SourceID string `json:"source_id"`
	Field    string `json:"field"`
	Problem  string `json:"problem"`
}

// Validate checks record integrity for the given identifiers, or for all
// live records when ids is empty.
func (r *Registry) Validate(ctx context.Context, ids []string) ([]ValidationIssue, error) {
	list, err := r.List(ctx, Filter{IDs: ids})
	if err != nil {
		return nil, err
	}
	issues := make([]ValidationIssue, 0)
	for _, src := range list {
		if err := validateSourceURL(src.URL); err != nil {
			issues = append(issues, ValidationIssue{SourceID: src.ID, Field: "url", Problem: err.Error()})
		}
		if src.Domain == "" {
			issues = append(issues, ValidationIssue{SourceID: src.ID, Field: "domain", Problem: "empty domain"})
		} else if got := DomainOf(src.URL); got != "" && got != src.Domain {
			issues = append(issues, ValidationIssue{SourceID: src.ID, Field: "domain",
				Problem: fmt.Sprintf("domain %q does not match URL host %q", src.Domain, got)})
		}
		switch src.Status {
		case content.SourceActive, content.SourceUpdated, content.SourceError, content.SourceRemoved:
		default:
			issues = append(issues, ValidationIssue{SourceID: src.ID, Field: "status",
				Problem: fmt.Sprintf("unknown status %q", src.Status)})
		}
	}
	return issues, nil
}

func validateSourceURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("empty URL")
	}
	if DomainOf(rawURL) == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// DetectDuplicates scores every live source pair and returns groups at or
// above the configured threshold with a merge suggestion.
func (r *Registry) DetectDuplicates(ctx context.Context) ([]content.DuplicateGroup, error) {
	list, err := r.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return detectDuplicates(list, r.weights), nil
}

// Weights exposes the configured similarity weights.
func (r *Registry) Weights() SimilarityWeights { return r.weights }
