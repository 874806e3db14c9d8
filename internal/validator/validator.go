// Package validator checks cycle reports before they are published.
package validator

import (
	"fmt"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/report"
)

// CycleReportValidator validates mark cycle reports.
type CycleReportValidator struct{}

// NewCycleReportValidator creates a new cycle report validator.
func NewCycleReportValidator() *CycleReportValidator {
	return &CycleReportValidator{}
}

// Validate validates a cycle report.
func (v *CycleReportValidator) Validate(r *report.CycleReport) error {
	if r.ID == "" {
		return &errors.ValidationError{
			ReportID: r.ID,
			Field:    "id",
			Reason:   "required field is missing",
		}
	}

	if r.Sequence <= 0 {
		return &errors.ValidationError{
			ReportID: r.ID,
			Field:    "sequence",
			Reason:   fmt.Sprintf("must be positive, got %d", r.Sequence),
		}
	}

	switch r.Outcome {
	case report.OutcomeCompleted, report.OutcomeAbandoned:
	default:
		return &errors.ValidationError{
			ReportID: r.ID,
			Field:    "outcome",
			Reason:   fmt.Sprintf("unsupported outcome: %q", r.Outcome),
		}
	}

	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return &errors.ValidationError{
			ReportID: r.ID,
			Field:    "finished_at",
			Reason:   "cycle must start before it finishes",
		}
	}

	counts := []struct {
		field string
		value int64
	}{
		{"buffers_enqueued", r.BuffersEnqueued},
		{"buffers_processed", r.BuffersProcessed},
		{"buffers_abandoned", r.BuffersAbandoned},
		{"entries_processed", r.EntriesProcessed},
		{"entries_filtered", r.EntriesFiltered},
		{"objects_marked", r.ObjectsMarked},
	}
	for _, c := range counts {
		if c.value < 0 {
			return &errors.ValidationError{
				ReportID: r.ID,
				Field:    c.field,
				Reason:   fmt.Sprintf("must not be negative, got %d", c.value),
			}
		}
	}

	// A completed cycle processes everything; only abandonment discards.
	if r.Outcome == report.OutcomeCompleted && r.BuffersAbandoned != 0 {
		return &errors.ValidationError{
			ReportID: r.ID,
			Field:    "buffers_abandoned",
			Reason:   "completed cycle abandoned buffers",
		}
	}

	return nil
}
