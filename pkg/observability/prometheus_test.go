package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_Counter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Counter(MetricSubscriptionsCreated, 1, T("plan", "user_premium"))
	m.Counter(MetricSubscriptionsCreated, 2, T("plan", "user_premium"))
	m.Counter(MetricSubscriptionsCreated, 1, T("plan", "business_basic"), T("ignored", "x"))

	count, err := testutil.GatherAndCount(reg, MetricSubscriptionsCreated)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	m.mu.Lock()
	vec := m.counters[MetricSubscriptionsCreated].vec
	m.mu.Unlock()
	assert.Equal(t, 3.0, testutil.ToFloat64(vec.WithLabelValues("user_premium")))
}

func TestPrometheusMetrics_GaugeAndTiming(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Gauge(MetricOutboxPending, 7)
	m.Timing(MetricOperationDuration, 250*time.Millisecond, T("operation", "billing.subscribe"))
	m.Histogram("mosaic_batch_size", 12)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names[MetricOutboxPending])
	assert.True(t, names[MetricOperationDuration])
	assert.True(t, names["mosaic_batch_size"])
}

func TestPrometheusMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPrometheusMetrics(reg)
	second := NewPrometheusMetrics(reg)

	first.Counter(MetricActivityEvents, 1, T("kind", "view_business"))
	second.Counter(MetricActivityEvents, 1, T("kind", "view_business"))

	second.mu.Lock()
	vec := second.counters[MetricActivityEvents].vec
	second.mu.Unlock()
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("view_business")))
}
