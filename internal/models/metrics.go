package models

import "time"

// MetricsSnapshot aggregates instrumentation counters for API consumption.
type MetricsSnapshot struct {
	EntryWrites              uint64    `json:"entry_writes"`
	ConflictsDetected        uint64    `json:"conflicts_detected"`
	ConflictsResolved        uint64    `json:"conflicts_resolved"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
