package marking

import (
	"math/bits"
	"sync/atomic"

	"github.com/jittakal/satbqueue/pkg/satb"
)

// Bitmap holds one mark bit per object of a simulated heap. Object ids run
// from 1 to Size; the null entry and ids out of range are never marked.
// All methods are safe for concurrent use.
type Bitmap struct {
	words []atomic.Uint64
	size  uint64
}

// NewBitmap creates a cleared bitmap for objects ids 1..objects.
func NewBitmap(objects int) *Bitmap {
	if objects < 0 {
		objects = 0
	}
	return &Bitmap{
		words: make([]atomic.Uint64, (objects+64)/64),
		size:  uint64(objects),
	}
}

// Size returns the number of objects covered.
func (b *Bitmap) Size() int {
	return int(b.size)
}

func (b *Bitmap) locate(e satb.Entry) (word int, mask uint64, ok bool) {
	id := uint64(e)
	if id == 0 || id > b.size {
		return 0, 0, false
	}
	return int(id / 64), 1 << (id % 64), true
}

// Mark sets the bit for e and reports whether it was previously clear.
func (b *Bitmap) Mark(e satb.Entry) bool {
	w, mask, ok := b.locate(e)
	if !ok {
		return false
	}
	for {
		old := b.words[w].Load()
		if old&mask != 0 {
			return false
		}
		if b.words[w].CompareAndSwap(old, old|mask) {
			return true
		}
	}
}

// IsMarked reports whether the bit for e is set.
func (b *Bitmap) IsMarked(e satb.Entry) bool {
	w, mask, ok := b.locate(e)
	if !ok {
		return false
	}
	return b.words[w].Load()&mask != 0
}

// Count returns the number of marked objects.
func (b *Bitmap) Count() int {
	n := 0
	for i := range b.words {
		n += bits.OnesCount64(b.words[i].Load())
	}
	return n
}

// Clear unmarks every object. It must not race with Mark.
func (b *Bitmap) Clear() {
	for i := range b.words {
		b.words[i].Store(0)
	}
}
