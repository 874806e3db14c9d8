package recordbuf

import "unsafe"

// Byte offsets and widths of the Buffer fields read by generated fast-path
// append sequences. Changing the Buffer field order changes these values.
const (
	IndexOffset   = unsafe.Offsetof(Buffer{}.index)
	IndexSize     = unsafe.Sizeof(Buffer{}.index)
	EntriesOffset = unsafe.Offsetof(Buffer{}.entries)
	EntriesSize   = unsafe.Sizeof(Buffer{}.entries)
)
