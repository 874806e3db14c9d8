package markqueue

import (
	"unsafe"

	"github.com/jittakal/satbqueue/internal/recordbuf"
)

// FieldLayout locates one field that generated append sequences access
// directly.
type FieldLayout struct {
	Name   string
	Offset uintptr
	Size   uintptr
}

// Byte offsets within a Queue.
const (
	BufferOffset = unsafe.Offsetof(Queue{}.buf)
	ActiveOffset = unsafe.Offsetof(Queue{}.active)
)

// Layout returns the offset table for the queue and buffer fields touched
// by inlined appends: the buffer pointer and active flag of a Queue, and
// the cursor and storage slice of the buffer it points to.
func Layout() []FieldLayout {
	return []FieldLayout{
		{Name: "queue.buf", Offset: BufferOffset, Size: unsafe.Sizeof(Queue{}.buf)},
		{Name: "queue.active", Offset: ActiveOffset, Size: unsafe.Sizeof(Queue{}.active)},
		{Name: "buffer.index", Offset: recordbuf.IndexOffset, Size: recordbuf.IndexSize},
		{Name: "buffer.entries", Offset: recordbuf.EntriesOffset, Size: recordbuf.EntriesSize},
	}
}

// LookupField returns the layout of the named field.
func LookupField(name string) (FieldLayout, bool) {
	for _, f := range Layout() {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}
