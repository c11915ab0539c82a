package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementEventLookup(OutcomeOK)
	m.IncrementEventLookup(OutcomeOK)
	m.IncrementEventLookup(OutcomeError)
	m.IncrementRatingWrite("create")
	m.ObserveEventLookupLatency(20 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventLookups.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventLookups.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatingWrites.WithLabelValues("create")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementEventLookup(OutcomeSkipped)
		m.ObserveEventLookupLatency(time.Second)
		m.IncrementRatingWrite("delete")
	})
}
