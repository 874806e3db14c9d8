// Package recordbuf provides fixed-capacity record buffers and the free
// list they are recycled through.
//
// # Buffer
//
// A Buffer fills from its high end toward zero. The cursor (Index) marks the
// lowest active slot:
//
//	buf := recordbuf.New(4)   // Index() == 4, IsEmpty() == true
//	buf.Push(a)               // Index() == 3, active: [a]
//	buf.Push(b)               // Index() == 2, active: [b a]
//
// # Filtering
//
// ApplyFilter compacts the active region in place without allocating. Kept
// entries are moved into the slots of discarded ones near the end of the
// buffer, so their relative order is not preserved:
//
//	removed := buf.ApplyFilter(func(e satb.Entry) bool {
//	    return alreadyMarked(e)
//	})
//
// # Pool
//
// Pool hands out empty buffers of a single capacity, allocating through an
// Allocator when the free list is empty, and takes them back with Release:
//
//	pool := recordbuf.NewPool(1024, nil)
//	buf, fresh := pool.Acquire()
//	...
//	pool.Release(buf) // buf is reset before it is pooled
//
// # Thread Safety
//
// Buffers are owned by one goroutine at a time and are not synchronized.
// Pool methods are safe for concurrent use and guarded by a single mutex
// that is never held while calling the allocator.
package recordbuf
