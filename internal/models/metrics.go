package models

import "time"

// SystemMetrics is the JSON snapshot served next to the prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	Generations              map[string]uint64 `json:"generations"`
	AverageGenerationMs      float64           `json:"average_generation_ms"`
	UnplacedCourses          uint64            `json:"unplaced_courses"`
	ConflictsDetected        uint64            `json:"conflicts_detected"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
