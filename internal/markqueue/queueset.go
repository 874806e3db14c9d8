package markqueue

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/internal/recordbuf"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Enqueue sources reported to MetricsCollector.
const (
	SourceRetire = "retire"
	SourceFlush  = "flush"
	SourceDirect = "direct"
)

// SharedQueueName is the name of the permanent queue used by threads that
// do not own a queue of their own.
const SharedQueueName = "shared"

// MetricsCollector defines metrics operations for a queue set.
type MetricsCollector interface {
	IncBuffersEnqueued(source string)
	IncBuffersProcessed()
	AddEntriesProcessed(n int)
	AddBuffersAbandoned(n int)
	AddEntriesFiltered(n int)
	IncBuffersAllocated()
	SetCompletedBuffers(n int)
	SetFreeBuffers(n int)
	ObserveActivation(active bool)
	ObserveDrainDuration(duration float64)
}

// ThreadSet enumerates the queues of every live mutator thread. It is only
// walked while the world is stopped.
type ThreadSet interface {
	ForEachQueue(fn func(*Queue))
}

// Config contains queue set configuration.
type Config struct {
	// BufferCapacity is the number of entries per buffer.
	BufferCapacity int
	// ProcessCompletedThreshold is the completed list length above which
	// drainers are signalled. A negative value disables signalling.
	ProcessCompletedThreshold int
	// EnqueueThresholdPercent is the share of a filtered buffer that must
	// survive for the buffer to be enqueued. Zero enqueues any buffer with
	// at least one retained entry.
	EnqueueThresholdPercent int
	// FilterBeforeEnqueue applies the filter when a buffer fills up.
	FilterBeforeEnqueue bool
	// Allocator supplies buffer storage. Nil selects the heap.
	Allocator recordbuf.Allocator
}

// DefaultConfig returns the default queue set configuration.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:            1024,
		ProcessCompletedThreshold: 20,
		EnqueueThresholdPercent:   0,
		FilterBeforeEnqueue:       true,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.BufferCapacity)
	}
	if c.EnqueueThresholdPercent < 0 || c.EnqueueThresholdPercent >= 100 {
		return fmt.Errorf("enqueue threshold percent must be in [0, 100), got %d", c.EnqueueThresholdPercent)
	}
	return nil
}

// Stats is a point-in-time snapshot of a queue set.
type Stats struct {
	Active           bool
	ProcessCompleted bool
	CompletedBuffers int
	FreeBuffers      int
	AllocatedBuffers int64
	BuffersEnqueued  int64
	BuffersProcessed int64
	BuffersAbandoned int64
	EntriesProcessed int64
	EntriesFiltered  int64
}

// QueueSet is the global registry behind every mark queue: the free pool,
// the FIFO of completed buffers, the activation flag, the filter and the
// shared queue. The free pool and the completed list are guarded by
// separate locks.
type QueueSet struct {
	cfg     Config
	pool    *recordbuf.Pool
	threads ThreadSet
	filter  satb.BufferFilter
	logger  *zap.Logger
	metrics MetricsCollector

	completedMu      sync.Mutex
	completed        []*recordbuf.Buffer
	processCompleted bool
	notify           chan struct{}

	active atomic.Bool

	sharedMu sync.Mutex
	shared   *Queue

	buffersEnqueued  atomic.Int64
	buffersProcessed atomic.Int64
	buffersAbandoned atomic.Int64
	entriesProcessed atomic.Int64
	entriesFiltered  atomic.Int64
}

// NewQueueSet creates an inactive queue set. threads may be nil when no
// per-thread queues exist, filter may be nil to disable filtering, and
// metrics may be nil.
func NewQueueSet(
	cfg Config,
	threads ThreadSet,
	filter satb.BufferFilter,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*QueueSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue set config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	qs := &QueueSet{
		cfg:     cfg,
		pool:    recordbuf.NewPool(cfg.BufferCapacity, cfg.Allocator),
		threads: threads,
		filter:  filter,
		logger:  logger,
		metrics: metrics,
		notify:  make(chan struct{}, 1),
	}
	qs.shared = &Queue{name: SharedQueueName, permanent: true, qset: qs}
	return qs, nil
}

// NewQueue creates a queue for a newly started thread. The queue inherits
// the current activation state, so it must be created while the world
// cannot be stopped underneath it.
func (qs *QueueSet) NewQueue(name string) *Queue {
	return &Queue{name: name, active: qs.active.Load(), qset: qs}
}

// IsActive reports whether marking is in progress.
func (qs *QueueSet) IsActive() bool {
	return qs.active.Load()
}

// Config returns the configuration the queue set was built with.
func (qs *QueueSet) Config() Config {
	return qs.cfg
}

// SharedQueue returns the permanent queue shared by non-mutator threads.
// Use EnqueueShared to append to it.
func (qs *QueueSet) SharedQueue() *Queue {
	return qs.shared
}

// EnqueueShared appends e to the shared queue. It is safe for concurrent
// use and does nothing while marking is inactive.
func (qs *QueueSet) EnqueueShared(e satb.Entry) {
	qs.sharedMu.Lock()
	defer qs.sharedMu.Unlock()
	if !qs.shared.active {
		return
	}
	qs.shared.Append(e)
}

// AcquireBuffer returns an empty buffer from the free pool, allocating one
// when the pool is empty.
func (qs *QueueSet) AcquireBuffer() *recordbuf.Buffer {
	b, fresh := qs.pool.Acquire()
	if fresh && qs.metrics != nil {
		qs.metrics.IncBuffersAllocated()
	}
	return b
}

func (qs *QueueSet) releaseBuffer(b *recordbuf.Buffer) {
	qs.pool.Release(b)
	if qs.metrics != nil {
		qs.metrics.SetFreeBuffers(qs.pool.Len())
	}
}

// EnqueueCompleted appends a non-empty buffer to the tail of the completed
// list. Ownership of b passes to the queue set.
func (qs *QueueSet) EnqueueCompleted(b *recordbuf.Buffer) {
	qs.enqueueCompleted(b, SourceDirect)
}

func (qs *QueueSet) enqueueCompleted(b *recordbuf.Buffer, source string) {
	if b == nil || b.IsEmpty() {
		panic(fmt.Errorf("%w: enqueue of empty buffer", errors.ErrInvalidBuffer))
	}

	qs.completedMu.Lock()
	qs.completed = append(qs.completed, b)
	n := len(qs.completed)
	signal := false
	if threshold := qs.cfg.ProcessCompletedThreshold; threshold >= 0 && n > threshold && !qs.processCompleted {
		qs.processCompleted = true
		signal = true
	}
	qs.completedMu.Unlock()

	qs.buffersEnqueued.Add(1)
	if qs.metrics != nil {
		qs.metrics.IncBuffersEnqueued(source)
		qs.metrics.SetCompletedBuffers(n)
	}

	if signal {
		select {
		case qs.notify <- struct{}{}:
		default:
		}
	}
}

func (qs *QueueSet) shouldEnqueue(b *recordbuf.Buffer) bool {
	if b.IsEmpty() {
		return false
	}
	return b.Len()*100 > qs.cfg.EnqueueThresholdPercent*b.Capacity()
}

// DrainOne removes the oldest completed buffer, passes its entries to
// consumer and returns the buffer to the free pool. It reports false when
// the completed list is empty. The consumer runs without any queue set
// lock held.
func (qs *QueueSet) DrainOne(consumer satb.BufferConsumer) bool {
	start := time.Now()

	qs.completedMu.Lock()
	if len(qs.completed) == 0 {
		qs.processCompleted = false
		qs.completedMu.Unlock()
		return false
	}
	b := qs.completed[0]
	qs.completed[0] = nil
	qs.completed = qs.completed[1:]
	n := len(qs.completed)
	if n == 0 {
		qs.processCompleted = false
	}
	qs.completedMu.Unlock()

	entries := b.Len()
	consumer.ConsumeBuffer(b.Active())
	qs.releaseBuffer(b)

	qs.buffersProcessed.Add(1)
	qs.entriesProcessed.Add(int64(entries))
	if qs.metrics != nil {
		qs.metrics.SetCompletedBuffers(n)
		qs.metrics.IncBuffersProcessed()
		qs.metrics.AddEntriesProcessed(entries)
		qs.metrics.ObserveDrainDuration(time.Since(start).Seconds())
	}
	return true
}

// CompletedCount returns the number of buffers waiting to be processed.
func (qs *QueueSet) CompletedCount() int {
	qs.completedMu.Lock()
	defer qs.completedMu.Unlock()
	return len(qs.completed)
}

// ProcessCompletedBuffers reports whether the completed list crossed the
// processing threshold and has not been drained since.
func (qs *QueueSet) ProcessCompletedBuffers() bool {
	qs.completedMu.Lock()
	defer qs.completedMu.Unlock()
	return qs.processCompleted
}

// Notify returns a channel that receives a value when the completed list
// crosses the processing threshold. At most one notification is pending.
func (qs *QueueSet) Notify() <-chan struct{} {
	return qs.notify
}

// FilterThreadBuffers applies the filter to the buffer of every thread
// queue and the shared queue. The world must be stopped.
func (qs *QueueSet) FilterThreadBuffers() {
	qs.forEachThreadQueue(func(q *Queue) {
		q.Filter()
	})
	qs.sharedMu.Lock()
	qs.shared.Filter()
	qs.sharedMu.Unlock()
}

// IterateClosureAllThreads feeds the unretired entries of every thread
// queue and the shared queue to consumer and empties those buffers. The
// world must be stopped.
func (qs *QueueSet) IterateClosureAllThreads(consumer satb.BufferConsumer) {
	qs.forEachThreadQueue(func(q *Queue) {
		q.ApplyClosureAndEmpty(consumer)
	})
	qs.sharedMu.Lock()
	qs.shared.ApplyClosureAndEmpty(consumer)
	qs.sharedMu.Unlock()
}

// AbandonPartialMarking returns every completed buffer to the free pool
// without processing it and returns how many were dropped. Buffers still
// owned by thread queues are left alone.
func (qs *QueueSet) AbandonPartialMarking() int {
	qs.completedMu.Lock()
	dropped := qs.completed
	qs.completed = nil
	qs.processCompleted = false
	qs.completedMu.Unlock()

	for _, b := range dropped {
		qs.pool.Release(b)
	}

	n := len(dropped)
	qs.buffersAbandoned.Add(int64(n))
	if qs.metrics != nil {
		qs.metrics.AddBuffersAbandoned(n)
		qs.metrics.SetCompletedBuffers(0)
		qs.metrics.SetFreeBuffers(qs.pool.Len())
	}
	qs.logger.Info("Abandoned partial marking", zap.Int("buffers", n))
	return n
}

// SetActiveAllThreads turns recording on or off for every queue. It must
// be called with the world stopped. Every queue, and the queue set itself,
// is expected to be in state expectedActive; a mismatch means a thread was
// missed or visited twice by an earlier transition and is fatal. The full
// state is logged before panicking with *errors.ActiveStateError.
func (qs *QueueSet) SetActiveAllThreads(active, expectedActive bool) {
	if err := qs.verifyActiveStates(expectedActive); err != nil {
		var dump strings.Builder
		qs.Dump(&dump, "SATB queue active state mismatch")
		qs.logger.Error("SATB queue active state mismatch",
			zap.Error(err),
			zap.String("states", dump.String()),
		)
		panic(err)
	}

	qs.active.Store(active)
	qs.forEachThreadQueue(func(q *Queue) {
		q.setActive(active)
	})
	qs.sharedMu.Lock()
	qs.shared.setActive(active)
	qs.sharedMu.Unlock()

	if qs.metrics != nil {
		qs.metrics.ObserveActivation(active)
	}
	qs.logger.Debug("SATB queues activation changed", zap.Bool("active", active))
}

func (qs *QueueSet) verifyActiveStates(expected bool) error {
	if actual := qs.active.Load(); actual != expected {
		return &errors.ActiveStateError{Queue: "queue-set", Expected: expected, Actual: actual}
	}

	var mismatch error
	qs.forEachThreadQueue(func(q *Queue) {
		if mismatch == nil && q.active != expected {
			mismatch = &errors.ActiveStateError{Queue: q.name, Expected: expected, Actual: q.active}
		}
	})
	if mismatch != nil {
		return mismatch
	}

	qs.sharedMu.Lock()
	defer qs.sharedMu.Unlock()
	if qs.shared.active != expected {
		return &errors.ActiveStateError{Queue: qs.shared.name, Expected: expected, Actual: qs.shared.active}
	}
	return nil
}

func (qs *QueueSet) forEachThreadQueue(fn func(*Queue)) {
	if qs.threads == nil {
		return
	}
	qs.threads.ForEachQueue(fn)
}

func (qs *QueueSet) recordFiltered(n int) {
	if n == 0 {
		return
	}
	qs.entriesFiltered.Add(int64(n))
	if qs.metrics != nil {
		qs.metrics.AddEntriesFiltered(n)
	}
}

func (qs *QueueSet) recordProcessed(n int) {
	qs.entriesProcessed.Add(int64(n))
	if qs.metrics != nil {
		qs.metrics.AddEntriesProcessed(n)
	}
}

// Stats returns a snapshot of the queue set counters.
func (qs *QueueSet) Stats() Stats {
	qs.completedMu.Lock()
	completed := len(qs.completed)
	processCompleted := qs.processCompleted
	qs.completedMu.Unlock()

	return Stats{
		Active:           qs.active.Load(),
		ProcessCompleted: processCompleted,
		CompletedBuffers: completed,
		FreeBuffers:      qs.pool.Len(),
		AllocatedBuffers: qs.pool.Allocated(),
		BuffersEnqueued:  qs.buffersEnqueued.Load(),
		BuffersProcessed: qs.buffersProcessed.Load(),
		BuffersAbandoned: qs.buffersAbandoned.Load(),
		EntriesProcessed: qs.entriesProcessed.Load(),
		EntriesFiltered:  qs.entriesFiltered.Load(),
	}
}

// Dump writes the activation state of the queue set and of every queue to
// w, preceded by msg. Thread queues are read without synchronization, so
// the output is only exact while the world is stopped.
func (qs *QueueSet) Dump(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s\n", msg)
	fmt.Fprintf(w, "  queue-set active=%t completed=%d free=%d\n",
		qs.active.Load(), qs.CompletedCount(), qs.pool.Len())
	qs.forEachThreadQueue(func(q *Queue) {
		fmt.Fprintf(w, "  %v\n", q)
	})
	qs.sharedMu.Lock()
	fmt.Fprintf(w, "  %v\n", qs.shared)
	qs.sharedMu.Unlock()
}
