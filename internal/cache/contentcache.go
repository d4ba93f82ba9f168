// Package cache stores fetched web content on disk with an expiry
// timestamp per entry. Keys are the deterministic content identifiers, so
// repeated fetches of one URL share a single file. Writes go through a
// temp file and rename to avoid partial reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperifyio/goharvest/internal/content"
)

// DefaultTTL is applied when a cache is constructed without one.
const DefaultTTL = 7 * 24 * time.Hour

// Entry is the on-disk envelope: the cached content plus its expiry as
// epoch milliseconds.
type Entry struct {
	Data      content.WebContent `json:"data"`
	ExpiresAt int64              `json:"expiresAt"`
}

// ContentCache is a TTL cache with one JSON file per content identifier.
// Concurrent writers to the same key race benignly: rename is atomic and
// last-writer-wins is acceptable since identical URLs carry identical
// content.
type ContentCache struct {
	Dir string
	TTL time.Duration
}

func (c *ContentCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	return os.MkdirAll(c.Dir, 0o755)
}

func (c *ContentCache) path(id string) string {
	return filepath.Join(c.Dir, id+".json")
}

func (c *ContentCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// Load returns the cached content for an identifier when present and not
// expired. Expired entries are removed on sight.
func (c *ContentCache) Load(_ context.Context, id string) (*content.WebContent, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		// Malformed entries are treated as misses and cleaned up.
		_ = os.Remove(c.path(id))
		return nil, false, nil
	}
	if time.Now().UnixMilli() >= e.ExpiresAt {
		_ = os.Remove(c.path(id))
		return nil, false, nil
	}
	return &e.Data, true, nil
}

// Save writes the content under its identifier with a fresh expiry.
func (c *ContentCache) Save(_ context.Context, wc *content.WebContent) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if wc == nil || wc.ID == "" {
		return errors.New("content missing identifier")
	}
	e := Entry{
		Data:      *wc,
		ExpiresAt: time.Now().Add(c.ttl()).UnixMilli(),
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	tmp := c.path(wc.ID) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return os.Rename(tmp, c.path(wc.ID))
}

// Delete removes one entry; missing entries are not an error.
func (c *ContentCache) Delete(_ context.Context, id string) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if err := os.Remove(c.path(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
