package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded for event enrichment.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Metrics provides observability for rating writes and event enrichment.
type Metrics struct {
	// Event lookups by outcome: ok, error, skipped
	EventLookups *prometheus.CounterVec

	EventLookupLatency prometheus.Histogram

	// Rating writes by operation: create, update, delete
	RatingWrites *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EventLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratings_event_lookups_total",
			Help: "Total event lookups performed to enrich ratings, by outcome",
		}, []string{"outcome"}),

		EventLookupLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ratings_event_lookup_duration_seconds",
			Help:    "Duration of upstream event lookups",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		RatingWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ratings_writes_total",
			Help: "Total successful rating writes by operation",
		}, []string{"operation"}),
	}
}

// IncrementEventLookup records an enrichment attempt.
func (m *Metrics) IncrementEventLookup(outcome string) {
	if m != nil {
		m.EventLookups.WithLabelValues(outcome).Inc()
	}
}

// ObserveEventLookupLatency records the duration of an upstream lookup.
func (m *Metrics) ObserveEventLookupLatency(d time.Duration) {
	if m != nil {
		m.EventLookupLatency.Observe(d.Seconds())
	}
}

// IncrementRatingWrite records a successful create, update or delete.
func (m *Metrics) IncrementRatingWrite(operation string) {
	if m != nil {
		m.RatingWrites.WithLabelValues(operation).Inc()
	}
}
