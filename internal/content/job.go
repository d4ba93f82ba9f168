package content

import "time"

// JobStatus is the terminal or in-flight state of a batch job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// ItemResult records one URL's outcome within a batch job.
type ItemResult struct {
	URL       string `json:"url"`
	Success   bool   `json:"success"`
	ContentID string `json:"content_id,omitempty"`
	SourceID  string `json:"source_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Job is the bookkeeping record for one batch invocation. It is mutated
// only by the orchestrator that owns it.
type Job struct {
	ID          string       `json:"id"`
	URLs        []string     `json:"urls"`
	Status      JobStatus    `json:"status"`
	Total       int          `json:"total"`
	Completed   int          `json:"completed"`
	Failed      int          `json:"failed"`
	Results     []ItemResult `json:"results"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
