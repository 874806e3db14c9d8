package recordbuf

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/jittakal/satbqueue/internal/errors"
	"github.com/jittakal/satbqueue/pkg/satb"
)

func fill(t *testing.T, b *Buffer, entries ...satb.Entry) {
	t.Helper()
	for _, e := range entries {
		b.Push(e)
	}
}

func sorted(entries []satb.Entry) []satb.Entry {
	out := append([]satb.Entry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalEntries(a, b []satb.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func expectPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		if err := errors.Recovered(r); !errors.Is(err, target) {
			t.Fatalf("panic = %v, want %v", err, target)
		}
	}()
	fn()
}

func TestNew(t *testing.T) {
	b := New(8)

	if b.Capacity() != 8 {
		t.Errorf("Capacity() = %d, want 8", b.Capacity())
	}
	if b.Index() != 8 {
		t.Errorf("Index() = %d, want 8", b.Index())
	}
	if !b.IsEmpty() {
		t.Error("new buffer should be empty")
	}
	if b.IsFull() {
		t.Error("new buffer should not be full")
	}
	if len(b.Active()) != 0 {
		t.Errorf("len(Active()) = %d, want 0", len(b.Active()))
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		expectPanic(t, errors.ErrInvalidBuffer, func() { New(capacity) })
	}
}

func TestBuffer_Push(t *testing.T) {
	b := New(4)
	fill(t, b, 10, 20, 30)

	if b.Index() != 1 {
		t.Errorf("Index() = %d, want 1", b.Index())
	}
	if b.Len() != 3 {
		t.Errorf("Len() = %d, want 3", b.Len())
	}
	want := []satb.Entry{30, 20, 10}
	if got := b.Active(); !equalEntries(got, want) {
		t.Errorf("Active() = %v, want %v", got, want)
	}

	b.Push(40)
	if !b.IsFull() {
		t.Error("buffer should be full after capacity pushes")
	}
}

func TestBuffer_PushFull(t *testing.T) {
	b := New(2)
	fill(t, b, 1, 2)

	expectPanic(t, errors.ErrBufferFull, func() { b.Push(3) })
	if b.Index() != 0 {
		t.Errorf("Index() = %d after failed push, want 0", b.Index())
	}
}

func TestBuffer_SetIndex(t *testing.T) {
	b := New(4)
	b.SetIndex(0)
	if !b.IsFull() {
		t.Error("SetIndex(0) should make the buffer full")
	}
	b.SetIndex(4)
	if !b.IsEmpty() {
		t.Error("SetIndex(capacity) should make the buffer empty")
	}

	expectPanic(t, errors.ErrInvalidBuffer, func() { b.SetIndex(5) })
	expectPanic(t, errors.ErrInvalidBuffer, func() { b.SetIndex(-1) })
}

func TestBuffer_Reset(t *testing.T) {
	b := New(4)
	fill(t, b, 1, 2, 3)
	b.Reset()

	if !b.IsEmpty() {
		t.Error("buffer should be empty after Reset")
	}
	if b.Capacity() != 4 {
		t.Errorf("Capacity() = %d, want 4", b.Capacity())
	}
}

func TestBuffer_ApplyFilter(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		entries  []satb.Entry
		discard  func(satb.Entry) bool
		want     []satb.Entry
	}{
		{
			name:     "empty buffer",
			capacity: 4,
			entries:  nil,
			discard:  func(satb.Entry) bool { return true },
			want:     nil,
		},
		{
			name:     "discard nothing",
			capacity: 4,
			entries:  []satb.Entry{1, 2, 3, 4},
			discard:  func(satb.Entry) bool { return false },
			want:     []satb.Entry{1, 2, 3, 4},
		},
		{
			name:     "discard everything",
			capacity: 4,
			entries:  []satb.Entry{1, 2, 3, 4},
			discard:  func(satb.Entry) bool { return true },
			want:     nil,
		},
		{
			name:     "discard even in full buffer",
			capacity: 6,
			entries:  []satb.Entry{1, 2, 3, 4, 5, 6},
			discard:  func(e satb.Entry) bool { return e%2 == 0 },
			want:     []satb.Entry{1, 3, 5},
		},
		{
			name:     "partially filled buffer",
			capacity: 8,
			entries:  []satb.Entry{7, 8, 9},
			discard:  func(e satb.Entry) bool { return e == 8 },
			want:     []satb.Entry{7, 9},
		},
		{
			name:     "keepers already at the end",
			capacity: 5,
			entries:  []satb.Entry{1, 2, 100, 200, 300},
			discard:  func(e satb.Entry) bool { return e >= 100 },
			want:     []satb.Entry{1, 2},
		},
		{
			name:     "single keeper",
			capacity: 5,
			entries:  []satb.Entry{0, 0, 5, 0, 0},
			discard:  func(e satb.Entry) bool { return e.Null() },
			want:     []satb.Entry{5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.capacity)
			fill(t, b, tt.entries...)
			before := b.Len()

			removed := b.ApplyFilter(tt.discard)

			if got := sorted(b.Active()); !equalEntries(got, sorted(tt.want)) {
				t.Errorf("Active() = %v, want %v (any order)", got, tt.want)
			}
			if b.Index() != tt.capacity-len(tt.want) {
				t.Errorf("Index() = %d, want %d", b.Index(), tt.capacity-len(tt.want))
			}
			if removed != before-len(tt.want) {
				t.Errorf("removed = %d, want %d", removed, before-len(tt.want))
			}
		})
	}
}

// Randomized check of the compaction contract: the retained multiset is
// exactly the set of entries the predicate keeps, and the cursor lands at
// capacity minus the number retained.
func TestBuffer_ApplyFilterRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for iter := 0; iter < 500; iter++ {
		capacity := 1 + rng.Intn(64)
		n := rng.Intn(capacity + 1)
		modulus := satb.Entry(1 + rng.Intn(5))

		b := New(capacity)
		var want []satb.Entry
		for i := 0; i < n; i++ {
			e := satb.Entry(rng.Intn(50))
			b.Push(e)
			if e%modulus != 0 {
				want = append(want, e)
			}
		}

		calls := 0
		b.ApplyFilter(func(e satb.Entry) bool {
			calls++
			return e%modulus == 0
		})

		if got := sorted(b.Active()); !equalEntries(got, sorted(want)) {
			t.Fatalf("iter %d: retained %v, want %v", iter, got, sorted(want))
		}
		if b.Index() != capacity-len(want) {
			t.Fatalf("iter %d: Index() = %d, want %d", iter, b.Index(), capacity-len(want))
		}
		if b.Index() > b.Capacity() {
			t.Fatalf("iter %d: Index() %d exceeds capacity %d", iter, b.Index(), b.Capacity())
		}
		if calls > 2*n {
			t.Fatalf("iter %d: predicate called %d times for %d entries", iter, calls, n)
		}
	}
}

func TestBuffer_ApplyFilterDiscardAllIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		b := New(16)
		perm := rng.Perm(16)
		for _, v := range perm[:rng.Intn(17)] {
			b.Push(satb.Entry(v))
		}
		b.ApplyFilter(func(satb.Entry) bool { return true })
		if !b.IsEmpty() {
			t.Fatalf("iter %d: Index() = %d, want 16", iter, b.Index())
		}
	}
}

func TestBuffer_ApplyFilterDoesNotTouchFreeSlots(t *testing.T) {
	b := New(6)
	fill(t, b, 1, 2, 3, 4, 5, 6)
	b.ApplyFilter(func(e satb.Entry) bool { return e > 3 })
	// Refill the freed region and make sure the retained entries survive.
	for b.Index() > 0 {
		b.Push(99)
	}
	count := map[satb.Entry]int{}
	for _, e := range b.Active() {
		count[e]++
	}
	if count[1] != 1 || count[2] != 1 || count[3] != 1 || count[99] != 3 {
		t.Errorf("entry counts = %v, want one each of 1,2,3 and three 99s", count)
	}
}

func TestBuffer_String(t *testing.T) {
	b := New(4)
	fill(t, b, 1)
	if got := b.String(); got != "[1/4]" {
		t.Errorf("String() = %q, want [1/4]", got)
	}
}
