// Package content defines the shared data model for the acquisition
// pipeline: typed content blocks, fetched web content, durable source
// records, and batch job bookkeeping.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlockType tags the payload variant carried by a Block.
type BlockType string

const (
	BlockText      BlockType = "text"
	BlockImage     BlockType = "image"
	BlockVideo     BlockType = "video"
	BlockCode      BlockType = "code"
	BlockQuiz      BlockType = "quiz"
	BlockFlashcard BlockType = "flashcard"
	BlockDiagram   BlockType = "diagram"
)

// BlockMetadata tracks edit history for a block. Version starts at 1 and
// increments on every edit; it never decreases.
type BlockMetadata struct {
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Version  int       `json:"version"`
}

// Block is one normalized unit of extracted content. The payload shape is
// opaque to the pipeline and interpreted according to Type by consumers.
type Block struct {
	ID       string         `json:"id"`
	Type     BlockType      `json:"type"`
	Content  map[string]any `json:"content"`
	Metadata BlockMetadata  `json:"metadata"`
}

// NewBlock creates a block with a fresh identifier and version 1.
func NewBlock(t BlockType, payload map[string]any, at time.Time) Block {
	return Block{
		ID:      uuid.NewString(),
		Type:    t,
		Content: payload,
		Metadata: BlockMetadata{
			Created:  at,
			Modified: at,
			Version:  1,
		},
	}
}

// Touch records an edit: bumps the version and moves the modified stamp.
func (b *Block) Touch(at time.Time) {
	b.Metadata.Modified = at
	b.Metadata.Version++
}

// Metadata holds document-level metadata gathered during extraction.
type Metadata struct {
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	Author         string            `json:"author,omitempty"`
	Published      *time.Time        `json:"published,omitempty"`
	Modified       *time.Time        `json:"modified,omitempty"`
	Language       string            `json:"language,omitempty"`
	Canonical      string            `json:"canonical,omitempty"`
	SiteName       string            `json:"site_name,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	Image          string            `json:"image,omitempty"`
	StructuredData []json.RawMessage `json:"structured_data,omitempty"`
}

// FetchError describes a failed fetch in a structured, user-presentable way.
type FetchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FetchError) Error() string { return e.Code + ": " + e.Message }

// Error codes used in FetchError.Code.
const (
	ErrCodeValidation = "validation"
	ErrCodeNetwork    = "network"
	ErrCodeHTTP       = "http_status"
	ErrCodeExtraction = "extraction"
	ErrCodeTimeout    = "timeout"
)

// WebContent is the result of one fetch. It is immutable once returned by
// the fetcher; failures are represented by a populated Error field rather
// than an absent value.
type WebContent struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Metadata   Metadata          `json:"metadata"`
	Text       string            `json:"text,omitempty"`
	HTML       string            `json:"html,omitempty"`
	Blocks     []Block           `json:"blocks"`
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Error      *FetchError       `json:"error,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Duration   time.Duration     `json:"duration"`
}

// ContentID derives the deterministic identifier for a URL. Repeated
// fetches of the same URL map to the same identifier and therefore the
// same cache entry.
func ContentID(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}
