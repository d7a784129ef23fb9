package models

import "time"

// SystemMetrics is a lightweight operational snapshot for staff dashboards.
type SystemMetrics struct {
	GeocodeCacheHitRatio     float64   `json:"geocodeCacheHitRatio"`
	GeocodeCacheHits         uint64    `json:"geocodeCacheHits"`
	GeocodeCacheMisses       uint64    `json:"geocodeCacheMisses"`
	GeocoderFailures         uint64    `json:"geocoderFailures"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	DBQueryCount             uint64    `json:"dbQueryCount"`
	AverageDBQueryDurationMs float64   `json:"averageDbQueryDurationMs"`
	ComplaintsCreated        uint64    `json:"complaintsCreated"`
	TransitionsAttempted     uint64    `json:"transitionsAttempted"`
	TransitionsRejected      uint64    `json:"transitionsRejected"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
