// Package marking provides the marking side of the SATB protocol: a mark
// bitmap that consumes completed buffers, a pool of background drainers and
// the coordinator that runs mark cycles.
package marking

import (
	"sync/atomic"

	"github.com/jittakal/satbqueue/pkg/satb"
)

// Ensure implementation satisfies interface at compile time.
var _ satb.BufferConsumer = (*Marker)(nil)

// MetricsCollector defines metrics operations for marking.
type MetricsCollector interface {
	AddObjectsMarked(n int)
	IncMarkCycles(outcome string)
	ObserveCycleDuration(duration float64)
	ObservePauseDuration(phase string, duration float64)
}

// Marker marks every entry it consumes in a Bitmap. Its filter drops
// entries that need no further work: nulls and objects already marked.
type Marker struct {
	bitmap  *Bitmap
	metrics MetricsCollector

	marked  atomic.Int64
	scanned atomic.Int64
}

// NewMarker creates a marker over bitmap. metrics may be nil.
func NewMarker(bitmap *Bitmap, metrics MetricsCollector) *Marker {
	return &Marker{bitmap: bitmap, metrics: metrics}
}

// Bitmap returns the bitmap the marker writes to.
func (m *Marker) Bitmap() *Bitmap {
	return m.bitmap
}

// ConsumeBuffer marks each entry of a completed buffer.
func (m *Marker) ConsumeBuffer(entries []satb.Entry) {
	marked := 0
	for _, e := range entries {
		if e.Null() {
			continue
		}
		if m.bitmap.Mark(e) {
			marked++
		}
	}
	m.scanned.Add(int64(len(entries)))
	if marked == 0 {
		return
	}
	m.marked.Add(int64(marked))
	if m.metrics != nil {
		m.metrics.AddObjectsMarked(marked)
	}
}

// Filter returns the buffer filter to install in the queue set.
func (m *Marker) Filter() satb.BufferFilter {
	return satb.DiscardFunc(m.discard)
}

func (m *Marker) discard(e satb.Entry) bool {
	return e.Null() || m.bitmap.IsMarked(e)
}

// ObjectsMarked returns the number of objects marked since creation.
func (m *Marker) ObjectsMarked() int64 {
	return m.marked.Load()
}

// EntriesScanned returns the number of entries consumed since creation.
func (m *Marker) EntriesScanned() int64 {
	return m.scanned.Load()
}
