package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module. A nil *Metrics is
// a no-op, so instrumented code never branches on whether metrics are wired.
type Metrics struct {
	RecordsOnboarded prometheus.Counter
	ChangesAppended  prometheus.Counter
	NotesAppended    prometheus.Counter
	StatusCacheHits  prometheus.Counter
	StatusDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all compliance module metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordsOnboarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_compliance_records_onboarded_total",
			Help: "Total number of compliance records created",
		}),
		ChangesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_compliance_changes_appended_total",
			Help: "Total number of change-history entries appended",
		}),
		NotesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_compliance_notes_appended_total",
			Help: "Total number of notes appended",
		}),
		StatusCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_compliance_status_cache_hits_total",
			Help: "Total number of status reads served from cache",
		}),
		StatusDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_compliance_status_duration_seconds",
			Help:    "Duration of compliance status derivations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOnboarded records a successful record creation.
func (m *Metrics) IncrementOnboarded() {
	if m == nil {
		return
	}
	m.RecordsOnboarded.Inc()
}

// IncrementChanges records one appended change entry.
func (m *Metrics) IncrementChanges() {
	if m == nil {
		return
	}
	m.ChangesAppended.Inc()
}

// IncrementNotes records one appended note.
func (m *Metrics) IncrementNotes() {
	if m == nil {
		return
	}
	m.NotesAppended.Inc()
}

// IncrementCacheHit records a status read served from Redis.
func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.StatusCacheHits.Inc()
}

// ObserveStatus records the duration of a status derivation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStatus(start time.Time) {
	if m == nil {
		return
	}
	m.StatusDuration.Observe(time.Since(start).Seconds())
}
