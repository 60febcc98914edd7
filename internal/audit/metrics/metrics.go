package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module. A nil *Metrics is a
// no-op, so instrumented code never branches on whether metrics are wired.
type Metrics struct {
	EventsRecorded  *prometheus.CounterVec
	PublishFailures prometheus.Counter
	RecordDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_events_recorded_total",
			Help: "Total number of audit events recorded, by event type",
		}, []string{"event_type"}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_publish_failures_total",
			Help: "Total number of failed Kafka fan-out attempts",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_audit_record_duration_seconds",
			Help:    "Duration of audit event record operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementRecorded records one persisted audit event.
func (m *Metrics) IncrementRecorded(eventType string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(eventType).Inc()
}

// IncrementPublishFailure records one failed fan-out attempt.
func (m *Metrics) IncrementPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// ObserveRecord records the duration of a record operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRecord(start time.Time) {
	if m == nil {
		return
	}
	m.RecordDuration.Observe(time.Since(start).Seconds())
}
