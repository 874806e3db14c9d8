package marking

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/pkg/report"
)

// Safepoint brings every mutator to a halt for the duration of fn.
type Safepoint interface {
	StopTheWorld(fn func())
}

// ThreadCounter reports the number of live mutator threads.
type ThreadCounter interface {
	Len() int
}

// Pause phases reported to MetricsCollector.
const (
	PhaseStart = "start"
	PhaseFinal = "final"
)

// CoordinatorConfig contains mark cycle configuration.
type CoordinatorConfig struct {
	// ConcurrentPhase is how long mutators run with recording enabled
	// before the final pause.
	ConcurrentPhase time.Duration
	// Threads is optional and only used for reporting.
	Threads ThreadCounter
}

// Coordinator runs mark cycles: a pause that clears the bitmap and turns
// recording on, a concurrent phase during which mutators record and
// drainers mark, and a final pause that either finishes marking or
// abandons it, then turns recording off.
type Coordinator struct {
	qs        *markqueue.QueueSet
	safepoint Safepoint
	marker    *Marker
	drainer   *Drainer
	cfg       CoordinatorConfig
	logger    *zap.Logger
	metrics   MetricsCollector

	sequence atomic.Int64
}

// NewCoordinator creates a coordinator. metrics may be nil.
func NewCoordinator(
	qs *markqueue.QueueSet,
	safepoint Safepoint,
	marker *Marker,
	drainer *Drainer,
	cfg CoordinatorConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*Coordinator, error) {
	if qs == nil || safepoint == nil || marker == nil || drainer == nil {
		return nil, fmt.Errorf("coordinator requires a queue set, safepoint, marker and drainer")
	}
	if cfg.ConcurrentPhase < 0 {
		return nil, fmt.Errorf("concurrent phase must not be negative, got %v", cfg.ConcurrentPhase)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		qs:        qs,
		safepoint: safepoint,
		marker:    marker,
		drainer:   drainer,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}, nil
}

// RunCycle runs one mark cycle and returns its report. When abandon is
// true, or ctx is cancelled during the concurrent phase, the final pause
// discards the unprocessed buffers instead of marking them.
func (c *Coordinator) RunCycle(ctx context.Context, abandon bool) report.CycleReport {
	r := report.CycleReport{
		ID:       uuid.NewString(),
		Sequence: c.sequence.Add(1),
	}
	before := c.qs.Stats()
	markedBefore := c.marker.ObjectsMarked()
	r.StartedAt = time.Now()

	c.safepoint.StopTheWorld(func() {
		start := time.Now()
		c.marker.Bitmap().Clear()
		c.qs.SetActiveAllThreads(true, false)
		r.StartPause = time.Since(start)
	})
	c.logger.Debug("Mark cycle started", zap.String("cycle_id", r.ID), zap.Int64("sequence", r.Sequence))

	timer := time.NewTimer(c.cfg.ConcurrentPhase)
	select {
	case <-ctx.Done():
		abandon = true
	case <-timer.C:
	}
	timer.Stop()

	c.safepoint.StopTheWorld(func() {
		start := time.Now()
		if abandon {
			c.drainer.Exclusive(func() {
				c.qs.AbandonPartialMarking()
			})
		} else {
			c.qs.FilterThreadBuffers()
			c.drainer.DrainAll()
			c.qs.IterateClosureAllThreads(c.marker)
		}
		c.qs.SetActiveAllThreads(false, true)
		if c.cfg.Threads != nil {
			r.Mutators = c.cfg.Threads.Len()
		}
		r.FinalPause = time.Since(start)
	})
	r.FinishedAt = time.Now()

	after := c.qs.Stats()
	r.Outcome = report.OutcomeCompleted
	if abandon {
		r.Outcome = report.OutcomeAbandoned
	}
	r.BuffersEnqueued = after.BuffersEnqueued - before.BuffersEnqueued
	r.BuffersProcessed = after.BuffersProcessed - before.BuffersProcessed
	r.BuffersAbandoned = after.BuffersAbandoned - before.BuffersAbandoned
	r.EntriesProcessed = after.EntriesProcessed - before.EntriesProcessed
	r.EntriesFiltered = after.EntriesFiltered - before.EntriesFiltered
	r.ObjectsMarked = c.marker.ObjectsMarked() - markedBefore

	if c.metrics != nil {
		c.metrics.IncMarkCycles(string(r.Outcome))
		c.metrics.ObserveCycleDuration(r.Duration().Seconds())
		c.metrics.ObservePauseDuration(PhaseStart, r.StartPause.Seconds())
		c.metrics.ObservePauseDuration(PhaseFinal, r.FinalPause.Seconds())
	}

	c.logger.Info("Mark cycle finished",
		zap.String("cycle_id", r.ID),
		zap.Int64("sequence", r.Sequence),
		zap.String("outcome", string(r.Outcome)),
		zap.Duration("duration", r.Duration()),
		zap.Duration("final_pause", r.FinalPause),
		zap.Int64("buffers_processed", r.BuffersProcessed),
		zap.Int64("objects_marked", r.ObjectsMarked),
	)
	return r
}
