// Package report defines the summary produced for every mark cycle and the
// interface of the sinks that publish it.
package report

import (
	"context"
	"time"
)

// Outcome describes how a mark cycle ended.
type Outcome string

const (
	// OutcomeCompleted means every recorded entry was processed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAbandoned means the cycle was cut short and unprocessed
	// buffers were discarded.
	OutcomeAbandoned Outcome = "abandoned"
)

// CycleReport summarizes one mark cycle.
type CycleReport struct {
	ID         string    `json:"id"`
	Sequence   int64     `json:"sequence"`
	Outcome    Outcome   `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Stop-the-world pause lengths.
	StartPause time.Duration `json:"start_pause_ns"`
	FinalPause time.Duration `json:"final_pause_ns"`

	Mutators         int   `json:"mutators"`
	BuffersEnqueued  int64 `json:"buffers_enqueued"`
	BuffersProcessed int64 `json:"buffers_processed"`
	BuffersAbandoned int64 `json:"buffers_abandoned"`
	EntriesProcessed int64 `json:"entries_processed"`
	EntriesFiltered  int64 `json:"entries_filtered"`
	ObjectsMarked    int64 `json:"objects_marked"`
}

// Duration returns the wall-clock length of the cycle.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Reporter publishes cycle reports.
type Reporter interface {
	// Report publishes r. Implementations may buffer.
	Report(ctx context.Context, r CycleReport) error
	// Close flushes buffered reports and releases resources.
	Close() error
}
