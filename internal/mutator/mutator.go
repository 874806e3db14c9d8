package mutator

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/markqueue"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Source produces batches of overwritten reference values.
type Source interface {
	Batch(dst []satb.Entry) []satb.Entry
}

// Mutator is a simulated application thread. Each batch of overwrites runs
// inside the safepoint and goes through the write barrier.
type Mutator struct {
	registry  *Registry
	qs        *markqueue.QueueSet
	safepoint *Safepoint
	source    Source
	pause     time.Duration
	logger    *zap.Logger

	writes   atomic.Int64
	recorded atomic.Int64
}

// NewMutator creates a mutator drawing overwrites from source and sleeping
// pause between batches.
func NewMutator(registry *Registry, qs *markqueue.QueueSet, source Source, pause time.Duration, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{
		registry:  registry,
		qs:        qs,
		safepoint: registry.safepoint,
		source:    source,
		pause:     pause,
		logger:    logger,
	}
}

// Run registers a thread and performs batches of writes until ctx is
// cancelled. On return the thread is unregistered, which flushes its
// queue.
func (m *Mutator) Run(ctx context.Context) error {
	thread := m.registry.Register(m.qs)
	defer m.registry.Unregister(thread)

	m.logger.Info("Mutator started", zap.String("thread_id", thread.ID()))

	var batch []satb.Entry
	var timer *time.Timer
	if m.pause > 0 {
		timer = time.NewTimer(m.pause)
		defer timer.Stop()
	}

	for {
		if ctx.Err() != nil {
			break
		}

		batch = m.source.Batch(batch)
		recorded := 0
		m.safepoint.Enter()
		for _, old := range batch {
			if thread.WriteBarrier(old) {
				recorded++
			}
		}
		m.safepoint.Leave()

		m.writes.Add(int64(len(batch)))
		m.recorded.Add(int64(recorded))

		if timer == nil {
			continue
		}
		timer.Reset(m.pause)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	m.logger.Info("Mutator stopped",
		zap.String("thread_id", thread.ID()),
		zap.Int64("writes", m.writes.Load()),
		zap.Int64("recorded", m.recorded.Load()),
	)
	return nil
}

// RunShared performs batches of writes through the queue set's shared
// queue until ctx is cancelled. It stands in for threads that never get a
// queue of their own, so no thread is registered.
func (m *Mutator) RunShared(ctx context.Context) error {
	m.logger.Info("Shared writer started")

	var batch []satb.Entry
	var timer *time.Timer
	if m.pause > 0 {
		timer = time.NewTimer(m.pause)
		defer timer.Stop()
	}

	for ctx.Err() == nil {
		batch = m.source.Batch(batch)
		recorded := 0
		m.safepoint.Enter()
		if m.qs.IsActive() {
			for _, old := range batch {
				if old.Null() {
					continue
				}
				m.qs.EnqueueShared(old)
				recorded++
			}
		}
		m.safepoint.Leave()

		m.writes.Add(int64(len(batch)))
		m.recorded.Add(int64(recorded))

		if timer == nil {
			continue
		}
		timer.Reset(m.pause)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	m.logger.Info("Shared writer stopped",
		zap.Int64("writes", m.writes.Load()),
		zap.Int64("recorded", m.recorded.Load()),
	)
	return nil
}

// Writes returns the number of reference writes performed.
func (m *Mutator) Writes() int64 {
	return m.writes.Load()
}

// Recorded returns the number of old values recorded by the barrier.
func (m *Mutator) Recorded() int64 {
	return m.recorded.Load()
}
