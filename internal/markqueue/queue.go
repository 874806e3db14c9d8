package markqueue

import (
	"fmt"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/internal/recordbuf"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Ensure implementation satisfies interface at compile time.
var _ satb.Filterable = (*Queue)(nil)

// Queue is the per-thread SATB mark queue. Appends are confined to the
// owning goroutine and take no locks. The active flag is only changed by
// the owning QueueSet while the world is stopped.
//
// The order of buf and active is part of the layout contract, see Layout.
type Queue struct {
	buf    *recordbuf.Buffer
	active bool

	permanent bool
	name      string
	qset      *QueueSet
}

// Name returns the diagnostic name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// IsActive reports whether the queue is currently recording.
func (q *Queue) IsActive() bool {
	return q.active
}

// IsPermanent reports whether this is the shared queue, whose buffer is
// never returned to the free pool.
func (q *Queue) IsPermanent() bool {
	return q.permanent
}

// Len returns the number of entries in the queue's current buffer.
func (q *Queue) Len() int {
	if q.buf == nil {
		return 0
	}
	return q.buf.Len()
}

// Append records e. The queue must be active. A buffer is acquired on
// demand, and a buffer that becomes full is retired before Append returns,
// so an append never observes a full buffer.
func (q *Queue) Append(e satb.Entry) {
	if !q.active {
		panic(fmt.Errorf("%w: queue=%s", errors.ErrQueueInactive, q.name))
	}
	if q.buf == nil {
		q.buf = q.qset.AcquireBuffer()
	}
	q.buf.Push(e)
	if q.buf.IsFull() {
		q.Retire()
	}
}

// Retire decides what to do with the current buffer once it filled up.
//
// With filtering enabled the queue set's filter runs first, and the buffer
// is handed to the completed list only if what survives exceeds the
// enqueue threshold. Otherwise the buffer stays with the queue, compacted,
// and recording continues in the freed slots. With filtering disabled any
// non-empty buffer is enqueued as is.
func (q *Queue) Retire() {
	if q.buf == nil || q.buf.IsEmpty() {
		return
	}
	if q.qset.cfg.FilterBeforeEnqueue {
		q.Filter()
		if !q.qset.shouldEnqueue(q.buf) {
			return
		}
	}
	q.qset.enqueueCompleted(q.buf, SourceRetire)
	q.buf = nil
}

// Flush hands a non-empty buffer to the completed list without filtering.
// An empty buffer goes back to the free pool unless the queue is permanent.
func (q *Queue) Flush() {
	if q.buf == nil {
		return
	}
	if !q.buf.IsEmpty() {
		q.qset.enqueueCompleted(q.buf, SourceFlush)
		q.buf = nil
		return
	}
	if !q.permanent {
		q.qset.releaseBuffer(q.buf)
		q.buf = nil
	}
}

// Filter applies the queue set's filter to the current buffer in place.
func (q *Queue) Filter() {
	if q.buf == nil || q.buf.IsEmpty() || q.qset.filter == nil {
		return
	}
	removed := q.qset.filter.Filter(q)
	q.qset.recordFiltered(removed)
}

// ApplyFilter removes the entries of the current buffer for which discard
// returns true.
func (q *Queue) ApplyFilter(discard func(satb.Entry) bool) int {
	if q.buf == nil {
		return 0
	}
	return q.buf.ApplyFilter(discard)
}

// ApplyClosureAndEmpty feeds the active entries of the current buffer to
// consumer and empties the buffer. It must only be called while the owner
// is stopped.
func (q *Queue) ApplyClosureAndEmpty(consumer satb.BufferConsumer) {
	if q.buf == nil || q.buf.IsEmpty() {
		return
	}
	n := q.buf.Len()
	consumer.ConsumeBuffer(q.buf.Active())
	q.buf.Reset()
	q.qset.recordProcessed(n)
}

// Close is called when the owning thread exits. Recorded entries are
// flushed to the completed list and the buffer is given up.
func (q *Queue) Close() {
	q.Flush()
}

func (q *Queue) setActive(active bool) {
	q.active = active
	if !active && q.buf != nil {
		q.buf.Reset()
	}
}

func (q *Queue) String() string {
	if q.buf == nil {
		return fmt.Sprintf("%s active=%t buffer=none", q.name, q.active)
	}
	return fmt.Sprintf("%s active=%t buffer=%v", q.name, q.active, q.buf)
}
