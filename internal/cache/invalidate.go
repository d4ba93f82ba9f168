package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the
// directory afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeExpired removes entries whose stored expiry has passed.
func PurgeExpired(dir string) (int, error) {
	return purge(dir, func(e Entry, _ fs.FileInfo) bool {
		return time.Now().UnixMilli() >= e.ExpiresAt
	})
}

// PurgeByAge removes entries fetched longer than maxAge ago, regardless
// of their stored expiry.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	return purge(dir, func(e Entry, _ fs.FileInfo) bool {
		return e.Data.FetchedAt.Before(cutoff)
	})
}

func purge(dir string, expired func(Entry, fs.FileInfo) bool) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil // skip unreadable
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil // skip malformed
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if !expired(e, info) {
			return nil
		}
		removed++
		_ = os.Remove(path)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return removed, nil
	}
	return removed, err
}
