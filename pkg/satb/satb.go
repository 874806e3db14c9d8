// Package satb defines the public contracts between SATB mark queues and
// the collaborators that filter and consume their buffers.
//
// Entries are opaque values recorded by the pre-write barrier: the value a
// reference slot held before it was overwritten. The queueing layer never
// interprets them; filters and consumers do.
package satb

// Entry is an opaque recorded value, typically the address of an object
// whose reference was about to be overwritten. The zero Entry is null.
type Entry uintptr

// Null reports whether the entry carries no reference.
func (e Entry) Null() bool {
	return e == 0
}

// Filterable is implemented by anything holding an active region of
// entries that can be compacted in place.
type Filterable interface {
	// ApplyFilter removes every active entry for which discard returns
	// true and reports how many entries were removed. The order of the
	// retained entries is not preserved.
	ApplyFilter(discard func(Entry) bool) int
}

// BufferFilter decides which recorded entries are no longer needed.
// It is invoked once per queue, typically when a buffer fills up or while
// the world is stopped.
type BufferFilter interface {
	Filter(q Filterable) int
}

// DiscardFunc adapts a per-entry predicate to BufferFilter.
type DiscardFunc func(Entry) bool

// Filter applies f to every active entry of q.
func (f DiscardFunc) Filter(q Filterable) int {
	return q.ApplyFilter(f)
}

// BufferConsumer processes the live entries of a completed buffer.
//
// The slice passed to ConsumeBuffer is a read-only view of the buffer's
// active region. It must not be retained after the call returns, since the
// buffer is reset and reused immediately afterwards. A consumer may return
// without looking at every entry.
type BufferConsumer interface {
	ConsumeBuffer(entries []Entry)
}

// ConsumerFunc adapts an ordinary function to BufferConsumer.
type ConsumerFunc func(entries []Entry)

// ConsumeBuffer calls f(entries).
func (f ConsumerFunc) ConsumeBuffer(entries []Entry) {
	f(entries)
}
