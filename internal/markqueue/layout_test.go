package markqueue

import (
	"testing"
	"unsafe"
)

// The generated append sequence hard-codes these offsets for 64-bit
// targets. A failure here means the generator must be updated together
// with the struct definitions.
func TestLayout_Pinned64(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout table is pinned for 64-bit platforms")
	}

	want := map[string]FieldLayout{
		"queue.buf":      {Name: "queue.buf", Offset: 0, Size: 8},
		"queue.active":   {Name: "queue.active", Offset: 8, Size: 1},
		"buffer.index":   {Name: "buffer.index", Offset: 0, Size: 8},
		"buffer.entries": {Name: "buffer.entries", Offset: 8, Size: 24},
	}

	got := Layout()
	if len(got) != len(want) {
		t.Fatalf("len(Layout()) = %d, want %d", len(got), len(want))
	}
	for _, f := range got {
		if f != want[f.Name] {
			t.Errorf("%s = %+v, want %+v", f.Name, f, want[f.Name])
		}
	}
}

func TestLookupField(t *testing.T) {
	f, ok := LookupField("queue.active")
	if !ok {
		t.Fatal("LookupField(queue.active) not found")
	}
	if f.Offset != ActiveOffset {
		t.Errorf("Offset = %d, want %d", f.Offset, ActiveOffset)
	}
	if _, ok := LookupField("queue.missing"); ok {
		t.Error("LookupField(queue.missing) should not be found")
	}
}
