package content

import "time"

// SourceStatus is the lifecycle state of an imported source.
type SourceStatus string

const (
	SourceActive  SourceStatus = "active"
	SourceUpdated SourceStatus = "updated"
	SourceError   SourceStatus = "error"
	SourceRemoved SourceStatus = "removed"
)

// SourceMetadata carries descriptive fields for a source record.
type SourceMetadata struct {
	Author      string   `json:"author,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
	WordCount   int      `json:"word_count,omitempty"`
	ReadingTime int      `json:"reading_time,omitempty"` // minutes
}

// UsageStats records how often a source has been consumed downstream.
type UsageStats struct {
	TimesReferenced int        `json:"times_referenced"`
	LastAccessed    *time.Time `json:"last_accessed,omitempty"`
	Modules         []string   `json:"modules,omitempty"`
}

// Source is the durable record of one previously imported origin URL.
type Source struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Domain      string         `json:"domain"`
	Title       string         `json:"title,omitempty"`
	ImportedAt  time.Time      `json:"imported_at"`
	LastChecked time.Time      `json:"last_checked"`
	Status      SourceStatus   `json:"status"`
	Metadata    SourceMetadata `json:"metadata"`
	Usage       UsageStats     `json:"usage"`
}

// SourceDiff captures an explicit before/after pair for an update; records
// are never silently overwritten.
type SourceDiff struct {
	Before Source `json:"before"`
	After  Source `json:"after"`
}

// HealthState classifies the outcome of a reachability probe.
type HealthState string

const (
	HealthHealthy HealthState = "healthy"
	HealthWarning HealthState = "warning"
	HealthError   HealthState = "error"
)

// HealthResult is one source's outcome from a health-check pass.
type HealthResult struct {
	SourceID  string        `json:"source_id"`
	URL       string        `json:"url"`
	State     HealthState   `json:"state"`
	Latency   time.Duration `json:"latency"`
	Status    int           `json:"status,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

// DuplicateGroup surfaces a set of sources judged to describe the same
// origin, with the winning score and a human-readable reason.
type DuplicateGroup struct {
	SourceIDs  []string `json:"source_ids"`
	Score      float64  `json:"score"`
	Reason     string   `json:"reason"`
	Suggestion string   `json:"suggestion"`
}
