package observability

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics records counters, gauges and distributions. Services depend on
// this interface; the worker plugs in Prometheus, tests an in-memory
// collector, everything else the no-op.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T builds a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(name string, value int64, tags ...Tag)        {}
func (NoopMetrics) Gauge(name string, value float64, tags ...Tag)        {}
func (NoopMetrics) Histogram(name string, value float64, tags ...Tag)    {}
func (NoopMetrics) Timing(name string, duration time.Duration, tags ...Tag) {}

// InMemoryMetrics keeps every sample in memory. Series are keyed by name and
// tags sorted by key, so tag order does not matter. Used by tests.
type InMemoryMetrics struct {
	mu      sync.RWMutex
	counts  map[string]int64
	levels  map[string]float64
	samples map[string][]float64
	timings map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	m := &InMemoryMetrics{}
	m.Reset()
	return m
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	m.counts[seriesKey(name, tags)] += value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	m.levels[seriesKey(name, tags)] = value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	key := seriesKey(name, tags)
	m.mu.Lock()
	m.samples[key] = append(m.samples[key], value)
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	key := seriesKey(name, tags)
	m.mu.Lock()
	m.timings[key] = append(m.timings[key], duration)
	m.mu.Unlock()
}

// GetCounter returns a counter's total.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[seriesKey(name, tags)]
}

// GetGauge returns a gauge's last value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levels[seriesKey(name, tags)]
}

// GetHistogram returns a copy of the observed values.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.samples[seriesKey(name, tags)])
}

// GetTimings returns a copy of the recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.timings[seriesKey(name, tags)])
}

// CounterTotal sums a counter across all tag combinations.
func (m *InMemoryMetrics) CounterTotal(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for key, v := range m.counts {
		if key == name || strings.HasPrefix(key, name+"{") {
			total += v
		}
	}
	return total
}

// Reset drops every series.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = map[string]int64{}
	m.levels = map[string]float64{}
	m.samples = map[string][]float64{}
	m.timings = map[string][]time.Duration{}
}

// seriesKey renders name{k1=v1,k2=v2} with tags sorted by key.
func seriesKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := slices.Clone(tags)
	slices.SortFunc(sorted, func(a, b Tag) int { return strings.Compare(a.Key, b.Key) })

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, t := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// Metric names emitted by mosaic.
const (
	MetricOperationTotal    = "mosaic_operations_total"
	MetricOperationDuration = "mosaic_operation_duration_seconds"
	MetricOperationErrors   = "mosaic_operation_errors_total"

	MetricSubscriptionsCreated   = "mosaic_subscriptions_created_total"
	MetricSubscriptionsCancelled = "mosaic_subscriptions_cancelled_total"
	MetricSubscriptionsRenewed   = "mosaic_subscriptions_renewed_total"
	MetricSubscriptionsExpired   = "mosaic_subscriptions_expired_total"
	MetricWebhooksReceived       = "mosaic_webhooks_received_total"
	MetricPaymentProcessorCalls  = "mosaic_payment_processor_calls_total"

	MetricActivityEvents       = "mosaic_activity_events_total"
	MetricSearchEvents         = "mosaic_search_events_total"
	MetricDailyMetricIncrement = "mosaic_daily_metrics_increments_total"
	MetricRankingCacheHits     = "mosaic_ranking_cache_hits_total"
	MetricRankingCacheMisses   = "mosaic_ranking_cache_misses_total"

	MetricReviewsAdded = "mosaic_reviews_added_total"

	MetricOutboxPublished = "mosaic_outbox_published_total"
	MetricOutboxFailed    = "mosaic_outbox_failed_total"
	MetricOutboxPending   = "mosaic_outbox_pending"
)
