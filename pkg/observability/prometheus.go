package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements Metrics on a Prometheus registry.
// Vectors are registered on first use; the label names of a metric are fixed
// by the tags of its first observation. Later observations fill missing
// labels with "" and drop unknown ones.
type PrometheusMetrics struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*labelled[*prometheus.CounterVec]
	gauges     map[string]*labelled[*prometheus.GaugeVec]
	histograms map[string]*labelled[*prometheus.HistogramVec]
}

type labelled[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusMetrics creates a collector registering into reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		registerer: reg,
		counters:   make(map[string]*labelled[*prometheus.CounterVec]),
		gauges:     make(map[string]*labelled[*prometheus.GaugeVec]),
		histograms: make(map[string]*labelled[*prometheus.HistogramVec]),
	}
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		names := labelNames(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, names)
		vec = registerOrExisting(m.registerer, vec)
		c = &labelled[*prometheus.CounterVec]{vec: vec, labels: names}
		m.counters[name] = c
	}
	m.mu.Unlock()

	c.vec.With(labelValues(c.labels, tags)).Add(float64(value))
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		names := labelNames(tags)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, names)
		vec = registerOrExisting(m.registerer, vec)
		g = &labelled[*prometheus.GaugeVec]{vec: vec, labels: names}
		m.gauges[name] = g
	}
	m.mu.Unlock()

	g.vec.With(labelValues(g.labels, tags)).Set(value)
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.histogram(name, tags).Observe(value)
}

// Timing records the duration in seconds.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.histogram(name, tags).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) histogram(name string, tags []Tag) prometheus.Observer {
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		names := labelNames(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, names)
		vec = registerOrExisting(m.registerer, vec)
		h = &labelled[*prometheus.HistogramVec]{vec: vec, labels: names}
		m.histograms[name] = h
	}
	m.mu.Unlock()

	return h.vec.With(labelValues(h.labels, tags))
}

// registerOrExisting registers c, returning the already registered
// collector when another PrometheusMetrics on the same registry won the race.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func labelNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if !seen[t.Key] {
			seen[t.Key] = true
			names = append(names, t.Key)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags []Tag) prometheus.Labels {
	labels := make(prometheus.Labels, len(names))
	for _, n := range names {
		labels[n] = ""
	}
	for _, t := range tags {
		if _, ok := labels[t.Key]; ok {
			labels[t.Key] = t.Value
		}
	}
	return labels
}
