package recordbuf

import (
	"fmt"
	"sync"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/satb"
)

// Allocator supplies raw storage for new buffers.
type Allocator interface {
	Allocate(capacity int) ([]satb.Entry, error)
}

// HeapAllocator allocates buffer storage on the Go heap.
type HeapAllocator struct{}

// Allocate returns a zeroed slice of length capacity.
func (HeapAllocator) Allocate(capacity int) ([]satb.Entry, error) {
	return make([]satb.Entry, capacity), nil
}

// Pool is the free list of empty buffers shared by every queue of a queue
// set. All buffers in a pool have the same capacity. It is safe for
// concurrent use.
type Pool struct {
	capacity  int
	allocator Allocator

	mu        sync.Mutex
	free      []*Buffer
	allocated int64
}

// NewPool creates an empty pool handing out buffers of the given capacity.
// A nil allocator selects HeapAllocator.
func NewPool(capacity int, allocator Allocator) *Pool {
	if capacity <= 0 {
		panic(fmt.Errorf("%w: capacity %d", errors.ErrInvalidBuffer, capacity))
	}
	if allocator == nil {
		allocator = HeapAllocator{}
	}
	return &Pool{
		capacity:  capacity,
		allocator: allocator,
	}
}

// Capacity returns the capacity of the buffers handed out by the pool.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Acquire returns an empty buffer, reusing a pooled one when available.
// The boolean result reports whether a new buffer had to be allocated.
// Allocation failure is fatal: there is no degraded mode for running out
// of memory for queue metadata.
func (p *Pool) Acquire() (*Buffer, bool) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return b, false
	}
	p.mu.Unlock()

	storage, err := p.allocator.Allocate(p.capacity)
	if err != nil {
		panic(fmt.Errorf("%w: %w", errors.ErrAllocationFailed, err))
	}
	if len(storage) != p.capacity {
		panic(fmt.Errorf("%w: allocator returned %d slots, want %d",
			errors.ErrAllocationFailed, len(storage), p.capacity))
	}

	p.mu.Lock()
	p.allocated++
	p.mu.Unlock()
	return wrap(storage), true
}

// Release resets b and returns it to the free list.
func (p *Pool) Release(b *Buffer) {
	if b.Capacity() != p.capacity {
		panic(fmt.Errorf("%w: releasing capacity %d into pool of %d",
			errors.ErrInvalidBuffer, b.Capacity(), p.capacity))
	}
	b.Reset()

	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// Len returns the number of pooled buffers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Allocated returns the number of buffers ever allocated by the pool.
func (p *Pool) Allocated() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Trim drops pooled buffers until at most keep remain and returns how many
// were dropped.
func (p *Pool) Trim(keep int) int {
	if keep < 0 {
		keep = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n <= keep {
		return 0
	}
	for i := keep; i < n; i++ {
		p.free[i] = nil
	}
	p.free = p.free[:keep]
	return n - keep
}
