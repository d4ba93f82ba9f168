package sources

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperifyio/goharvest/internal/content"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	canonical_url TEXT NOT NULL,
	domain        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'active',
	imported_at   INTEGER NOT NULL,
	last_checked  INTEGER NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	usage         TEXT NOT NULL DEFAULT '{}'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_canonical_live
	ON sources(canonical_url) WHERE status != 'removed';
CREATE INDEX IF NOT EXISTS idx_sources_domain ON sources(domain);
CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status);
`

// openDB opens the registry database with WAL and a busy timeout, then
// applies the schema. An empty path opens an in-memory database.
func openDB(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// sourceRow is the flat scan target for the sources table.
type sourceRow struct {
	id           string
	url          string
	canonicalURL string
	domain       string
	title        string
	status       string
	importedAt   int64
	lastChecked  int64
	metadata     string
	usage        string
}

const sourceColumns = "id, url, canonical_url, domain, title, status, imported_at, last_checked, metadata, usage"

func scanSource(scan func(dest ...any) error) (content.Source, error) {
	var row sourceRow
	if err := scan(&row.id, &row.url, &row.canonicalURL, &row.domain, &row.title,
		&row.status, &row.importedAt, &row.lastChecked, &row.metadata, &row.usage); err != nil {
		return content.Source{}, err
	}
	src := content.Source{
		ID:          row.id,
		URL:         row.url,
		Domain:      row.domain,
		Title:       row.title,
		Status:      content.SourceStatus(row.status),
		ImportedAt:  time.UnixMilli(row.importedAt).UTC(),
		LastChecked: time.UnixMilli(row.lastChecked).UTC(),
	}
	if err := json.Unmarshal([]byte(row.metadata), &src.Metadata); err != nil {
		return content.Source{}, fmt.Errorf("decode metadata for %s: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.usage), &src.Usage); err != nil {
		return content.Source{}, fmt.Errorf("decode usage for %s: %w", row.id, err)
	}
	return src, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
