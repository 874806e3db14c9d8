package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Queue set metrics
	BuffersEnqueued       *prometheus.CounterVec
	BuffersProcessed      prometheus.Counter
	BuffersAbandoned      prometheus.Counter
	BuffersAllocated      prometheus.Counter
	EntriesProcessed      prometheus.Counter
	EntriesFiltered       prometheus.Counter
	CompletedBuffers      prometheus.Gauge
	FreeBuffers           prometheus.Gauge
	MarkingActive         prometheus.Gauge
	ActivationTransitions *prometheus.CounterVec
	DrainDuration         prometheus.Histogram

	// Marking metrics
	ObjectsMarked prometheus.Counter
	MarkCycles    *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	PauseDuration *prometheus.HistogramVec

	// Report metrics
	ReportsPublished *prometheus.CounterVec
	ReportFileSize   *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Queue set metrics
		BuffersEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satb_buffers_enqueued_total",
				Help: "Total number of buffers appended to the completed list",
			},
			[]string{"source"},
		),
		BuffersProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satb_buffers_processed_total",
				Help: "Total number of completed buffers handed to the marking consumer",
			},
		),
		BuffersAbandoned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satb_buffers_abandoned_total",
				Help: "Total number of completed buffers discarded by abandoned marking",
			},
		),
		BuffersAllocated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satb_buffers_allocated_total",
				Help: "Total number of buffers allocated because the free pool was empty",
			},
		),
		EntriesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satb_entries_processed_total",
				Help: "Total number of recorded entries handed to the marking consumer",
			},
		),
		EntriesFiltered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "satb_entries_filtered_total",
				Help: "Total number of recorded entries removed by the buffer filter",
			},
		),
		CompletedBuffers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "satb_completed_buffers",
				Help: "Current number of buffers waiting to be processed",
			},
		),
		FreeBuffers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "satb_free_buffers",
				Help: "Current number of buffers in the free pool",
			},
		),
		MarkingActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "satb_marking_active",
				Help: "Whether SATB recording is currently enabled (1) or not (0)",
			},
		),
		ActivationTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "satb_activation_transitions_total",
				Help: "Total number of global activation transitions",
			},
			[]string{"state"},
		),
		DrainDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "satb_drain_duration_seconds",
				Help:    "Duration of processing one completed buffer",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),

		// Marking metrics
		ObjectsMarked: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "marking_objects_marked_total",
				Help: "Total number of objects newly marked",
			},
		),
		MarkCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marking_cycles_total",
				Help: "Total number of mark cycles by outcome",
			},
			[]string{"outcome"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marking_cycle_duration_seconds",
				Help:    "Wall-clock duration of mark cycles",
				Buckets: prometheus.DefBuckets,
			},
		),
		PauseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marking_pause_duration_seconds",
				Help:    "Duration of stop-the-world pauses",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"phase"},
		),

		// Report metrics
		ReportsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_published_total",
				Help: "Total number of cycle reports published",
			},
			[]string{"sink", "status"},
		),
		ReportFileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "report_file_size_bytes",
				Help:    "Size of report files written",
				Buckets: prometheus.ExponentialBuckets(512, 2, 12), // 512B to 1MB
			},
			[]string{"format"},
		),
	}
}

// IncBuffersEnqueued increments buffers enqueued counter.
func (m *Metrics) IncBuffersEnqueued(source string) {
	m.BuffersEnqueued.WithLabelValues(source).Inc()
}

// IncBuffersProcessed increments buffers processed counter.
func (m *Metrics) IncBuffersProcessed() {
	m.BuffersProcessed.Inc()
}

// AddEntriesProcessed adds to the entries processed counter.
func (m *Metrics) AddEntriesProcessed(n int) {
	m.EntriesProcessed.Add(float64(n))
}

// AddBuffersAbandoned adds to the buffers abandoned counter.
func (m *Metrics) AddBuffersAbandoned(n int) {
	m.BuffersAbandoned.Add(float64(n))
}

// AddEntriesFiltered adds to the entries filtered counter.
func (m *Metrics) AddEntriesFiltered(n int) {
	m.EntriesFiltered.Add(float64(n))
}

// IncBuffersAllocated increments buffers allocated counter.
func (m *Metrics) IncBuffersAllocated() {
	m.BuffersAllocated.Inc()
}

// SetCompletedBuffers sets completed buffers gauge.
func (m *Metrics) SetCompletedBuffers(n int) {
	m.CompletedBuffers.Set(float64(n))
}

// SetFreeBuffers sets free buffers gauge.
func (m *Metrics) SetFreeBuffers(n int) {
	m.FreeBuffers.Set(float64(n))
}

// ObserveActivation records a global activation transition.
func (m *Metrics) ObserveActivation(active bool) {
	state := "inactive"
	value := 0.0
	if active {
		state = "active"
		value = 1
	}
	m.MarkingActive.Set(value)
	m.ActivationTransitions.WithLabelValues(state).Inc()
}

// ObserveDrainDuration observes drain duration.
func (m *Metrics) ObserveDrainDuration(duration float64) {
	m.DrainDuration.Observe(duration)
}

// AddObjectsMarked adds to the objects marked counter.
func (m *Metrics) AddObjectsMarked(n int) {
	m.ObjectsMarked.Add(float64(n))
}

// IncMarkCycles increments mark cycles counter.
func (m *Metrics) IncMarkCycles(outcome string) {
	m.MarkCycles.WithLabelValues(outcome).Inc()
}

// ObserveCycleDuration observes mark cycle duration.
func (m *Metrics) ObserveCycleDuration(duration float64) {
	m.CycleDuration.Observe(duration)
}

// ObservePauseDuration observes stop-the-world pause duration.
func (m *Metrics) ObservePauseDuration(phase string, duration float64) {
	m.PauseDuration.WithLabelValues(phase).Observe(duration)
}

// IncReportsPublished increments reports published counter.
func (m *Metrics) IncReportsPublished(sink string, status string) {
	m.ReportsPublished.WithLabelValues(sink, status).Inc()
}

// ObserveReportFileSize observes report file size.
func (m *Metrics) ObserveReportFileSize(format string, size float64) {
	m.ReportFileSize.WithLabelValues(format).Observe(size)
}
