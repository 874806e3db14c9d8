package validator

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/report"
)

func validReport() report.CycleReport {
	start := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return report.CycleReport{
		ID:               "cycle-1",
		Sequence:         1,
		Outcome:          report.OutcomeCompleted,
		StartedAt:        start,
		FinishedAt:       start.Add(120 * time.Millisecond),
		Mutators:         8,
		BuffersEnqueued:  12,
		BuffersProcessed: 12,
		EntriesProcessed: 4096,
		ObjectsMarked:    900,
	}
}

func TestNewCycleReportValidator(t *testing.T) {
	validator := NewCycleReportValidator()
	if validator == nil {
		t.Fatal("expected non-nil validator")
	}
}

func TestCycleReportValidator_ValidateSuccess(t *testing.T) {
	validator := NewCycleReportValidator()

	abandoned := validReport()
	abandoned.Outcome = report.OutcomeAbandoned
	abandoned.BuffersAbandoned = 3

	instant := validReport()
	instant.FinishedAt = instant.StartedAt

	tests := []struct {
		name   string
		report report.CycleReport
	}{
		{"completed cycle", validReport()},
		{"abandoned cycle", abandoned},
		{"zero length cycle", instant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validator.Validate(&tt.report); err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
		})
	}
}

func TestCycleReportValidator_ValidateErrors(t *testing.T) {
	validator := NewCycleReportValidator()

	tests := []struct {
		name      string
		modify    func(r *report.CycleReport)
		wantField string
	}{
		{"missing id", func(r *report.CycleReport) { r.ID = "" }, "id"},
		{"zero sequence", func(r *report.CycleReport) { r.Sequence = 0 }, "sequence"},
		{"unknown outcome", func(r *report.CycleReport) { r.Outcome = "paused" }, "outcome"},
		{"missing start", func(r *report.CycleReport) { r.StartedAt = time.Time{} }, "finished_at"},
		{"finished before start", func(r *report.CycleReport) { r.FinishedAt = r.StartedAt.Add(-time.Second) }, "finished_at"},
		{"negative processed", func(r *report.CycleReport) { r.BuffersProcessed = -1 }, "buffers_processed"},
		{"negative marked", func(r *report.CycleReport) { r.ObjectsMarked = -5 }, "objects_marked"},
		{"completed with abandoned buffers", func(r *report.CycleReport) { r.BuffersAbandoned = 2 }, "buffers_abandoned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.modify(&r)

			err := validator.Validate(&r)
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			var validationErr *apperrors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Validate() error = %T, want *errors.ValidationError", err)
			}
			if validationErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", validationErr.Field, tt.wantField)
			}
		})
	}
}
