// Package recordbuf implements the fixed-capacity record buffers that carry
// SATB entries between mutator threads and marking threads.
package recordbuf

import (
	"fmt"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Ensure implementation satisfies interface at compile time.
var _ satb.Filterable = (*Buffer)(nil)

// Buffer is a fixed-capacity array of entries plus a cursor. It fills from
// the high end toward zero: slots [index, capacity) hold active entries and
// slots [0, index) are free. An empty buffer has index == capacity, a full
// one has index == 0.
//
// A Buffer is owned by exactly one holder at a time (a queue, the free pool
// or the completed list) and is not safe for concurrent use.
//
// The field order is part of the layout contract exported by markqueue.
type Buffer struct {
	index   int
	entries []satb.Entry
}

// New allocates an empty buffer with the given capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Errorf("%w: capacity %d", errors.ErrInvalidBuffer, capacity))
	}
	return wrap(make([]satb.Entry, capacity))
}

func wrap(storage []satb.Entry) *Buffer {
	return &Buffer{index: len(storage), entries: storage}
}

// Capacity returns the number of slots.
func (b *Buffer) Capacity() int {
	return len(b.entries)
}

// Index returns the cursor: the lowest active slot.
func (b *Buffer) Index() int {
	return b.index
}

// SetIndex moves the cursor. It panics if index is outside [0, capacity].
func (b *Buffer) SetIndex(index int) {
	if index < 0 || index > len(b.entries) {
		panic(fmt.Errorf("%w: index %d outside [0, %d]", errors.ErrInvalidBuffer, index, len(b.entries)))
	}
	b.index = index
}

// Len returns the number of active entries.
func (b *Buffer) Len() int {
	return len(b.entries) - b.index
}

// IsEmpty reports whether the buffer holds no active entries.
func (b *Buffer) IsEmpty() bool {
	return b.index == len(b.entries)
}

// IsFull reports whether every slot holds an active entry.
func (b *Buffer) IsFull() bool {
	return b.index == 0
}

// Push stores e in the next free slot below the active region.
// Pushing into a full buffer is a caller bug and panics with ErrBufferFull.
func (b *Buffer) Push(e satb.Entry) {
	i := b.index - 1
	if i < 0 {
		panic(errors.ErrBufferFull)
	}
	b.entries[i] = e
	b.index = i
}

// Active returns a view of the active entries. The view aliases the
// buffer's storage and is only valid until the buffer is next modified.
func (b *Buffer) Active() []satb.Entry {
	return b.entries[b.index:]
}

// Reset discards every active entry.
func (b *Buffer) Reset() {
	b.index = len(b.entries)
}

// ApplyFilter removes the active entries for which discard returns true,
// compacting the survivors toward the end of the buffer in place. The
// relative order of the survivors is not preserved. It returns the number
// of entries removed.
//
// Two fingers walk toward each other: src scans up from the cursor looking
// for keepers, dst scans down from the end looking for a discardable slot
// to overwrite with the keeper. When they meet every slot at or above dst
// holds a keeper.
func (b *Buffer) ApplyFilter(discard func(satb.Entry) bool) int {
	buf := b.entries
	before := b.index
	src := b.index
	dst := len(buf)
	for ; src < dst; src++ {
		entry := buf[src]
		if discard(entry) {
			continue
		}
		for dst--; src < dst; dst-- {
			if discard(buf[dst]) {
				buf[dst] = entry
				break
			}
		}
		// src == dst: the discard search failed and the outer loop ends.
	}
	b.index = dst
	return dst - before
}

// String implements fmt.Stringer for diagnostics.
func (b *Buffer) String() string {
	return fmt.Sprintf("[%d/%d]", b.Len(), len(b.entries))
}
