// Package notify decouples the pipeline from its presentation layer.
// The pipeline publishes events through a narrow Sink interface; callers
// inject a UI-bound implementation or the no-op sink for headless runs.
package notify

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event kinds published by the pipeline.
const (
	KindBatchStarted   = "batch.started"
	KindBatchProgress  = "batch.progress"
	KindBatchFinished  = "batch.finished"
	KindSourceAdded    = "source.added"
	KindSourceRemoved  = "source.removed"
	KindFetchFailed    = "fetch.failed"
	KindHealthDegraded = "health.degraded"
)

// Event is one pipeline notification.
type Event struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Time    time.Time      `json:"time"`
}

// Sink receives pipeline events. Implementations must be safe for
// concurrent use; batch tasks publish from multiple goroutines.
type Sink interface {
	Notify(Event)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Notify(Event) {}

// Log writes events to the zerolog global logger at debug level, with
// failures and degradations promoted to warn.
type Log struct{}

func (Log) Notify(e Event) {
	level := zerolog.DebugLevel
	if e.Kind == KindFetchFailed || e.Kind == KindHealthDegraded {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).Str("event", e.Kind).Fields(e.Data).Msg(e.Message)
}

// New builds an event with the current time.
func New(kind, message string, data map[string]any) Event {
	return Event{Kind: kind, Message: message, Data: data, Time: time.Now().UTC()}
}
