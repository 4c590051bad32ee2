package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	entryWrites       *prometheus.CounterVec
	conflictsDetected *prometheus.CounterVec
	conflictsResolved *prometheus.CounterVec
	templateApply     prometheus.Observer
	cacheLatency      prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	entryWriteCount      uint64
	conflictCount        uint64
	resolvedCount        uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	entryWrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_entry_writes_total",
		Help: "Total schedule entry writes by change type",
	}, []string{"change_type"})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_detected_total",
		Help: "Total schedule conflicts recorded by dimension",
	}, []string{"conflict_type"})

	conflictsResolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_resolved_total",
		Help: "Total schedule conflicts resolved by dimension",
	}, []string{"conflict_type"})

	templateApply := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "template_apply_duration_seconds",
		Help:    "Duration of template applications",
		Buckets: prometheus.DefBuckets,
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, entryWrites, conflictsDetected, conflictsResolved, templateApply, cacheLatency, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		entryWrites:       entryWrites,
		conflictsDetected: conflictsDetected,
		conflictsResolved: conflictsResolved,
		templateApply:     templateApply,
		cacheLatency:      cacheLatency,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveEntryWrite counts schedule entry mutations by change type.
func (m *MetricsService) ObserveEntryWrite(changeType string) {
	if m == nil {
		return
	}
	m.entryWrites.WithLabelValues(changeType).Inc()
	atomic.AddUint64(&m.entryWriteCount, 1)
}

// ObserveConflictDetected counts recorded conflicts per dimension.
func (m *MetricsService) ObserveConflictDetected(conflictType string) {
	if m == nil {
		return
	}
	m.conflictsDetected.WithLabelValues(conflictType).Inc()
	atomic.AddUint64(&m.conflictCount, 1)
}

// ObserveConflictResolved counts resolved conflicts per dimension.
func (m *MetricsService) ObserveConflictResolved(conflictType string) {
	if m == nil {
		return
	}
	m.conflictsResolved.WithLabelValues(conflictType).Inc()
	atomic.AddUint64(&m.resolvedCount, 1)
}

// TemplateApplyTimer returns a stop function that records the elapsed time.
func (m *MetricsService) TemplateApplyTimer() func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.templateApply.Observe(time.Since(start).Seconds())
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// Snapshot returns aggregated metrics suitable for status endpoints.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		EntryWrites:              atomic.LoadUint64(&m.entryWriteCount),
		ConflictsDetected:        atomic.LoadUint64(&m.conflictCount),
		ConflictsResolved:        atomic.LoadUint64(&m.resolvedCount),
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
