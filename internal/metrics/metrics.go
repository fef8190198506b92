// Package metrics exposes Prometheus instrumentation for curve generation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	cacheRequests      *prometheus.CounterVec
	narrativeRequests  *prometheus.CounterVec
	refreshes          *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics registers the collectors with a fresh registry.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_curve_generations_total",
			Help: "Curve reports generated, by data quality level.",
		}, []string{"quality"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "twin_curve_generation_duration_seconds",
			Help:    "Time spent aggregating and generating a curve report.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_cache_requests_total",
			Help: "Report cache lookups, by result.",
		}, []string{"result"}),
		narrativeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_narrative_requests_total",
			Help: "Narrative generation attempts, by outcome.",
		}, []string{"status"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_refresh_runs_total",
			Help: "Background refreshes, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twin_http_requests_total",
			Help: "HTTP requests, by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twin_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	for _, c := range []prometheus.Collector{
		m.generations, m.generationDuration, m.cacheRequests, m.narrativeRequests, m.refreshes,
		m.httpRequests, m.httpDuration,
		prometheus.NewGoCollector(),
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveGeneration records one generated report.
func (m *Metrics) ObserveGeneration(quality string, took time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(quality).Inc()
	m.generationDuration.Observe(took.Seconds())
}

// ObserveCache records a cache lookup result.
func (m *Metrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// ObserveNarrative records a narrative outcome.
func (m *Metrics) ObserveNarrative(status string) {
	if m == nil {
		return
	}
	m.narrativeRequests.WithLabelValues(status).Inc()
}

// ObserveRefresh records a background refresh for one user.
func (m *Metrics) ObserveRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, never the raw path, so user ids stay out of label values.
func (m *Metrics) ObserveRequest(route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
