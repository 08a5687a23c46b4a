package types

// CacheStats is a point-in-time snapshot of session cache counters.
type CacheStats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Evictions uint64  `json:"evictions"`
}

// LoaderStats is a point-in-time snapshot of background loader counters.
type LoaderStats struct {
	QueueDepth     int    `json:"queue_depth"`
	CompletedLoads uint64 `json:"completed_loads"`
	FailedLoads    uint64 `json:"failed_loads"`
	RetriedLoads   uint64 `json:"retried_loads"`
	DroppedAtStop  uint64 `json:"dropped_at_stop"`
}

// SweepSummary is the result of one archiving sweep over active history.
type SweepSummary struct {
	ArchivedCount   int   `json:"archived_count"`
	FailedCount     int   `json:"failed_count"`
	SpaceSavedBytes int64 `json:"space_saved_bytes"`
}

// ArchiveStats summarizes the archive tier.
type ArchiveStats struct {
	Entries             int     `json:"entries"`
	CompressedSizeBytes int64   `json:"compressed_size_bytes"`
	OriginalSizeBytes   int64   `json:"original_size_bytes"`
	OverallRatio        float64 `json:"overall_ratio"`
}

// PerfStats is the orchestrator-level performance snapshot.
type PerfStats struct {
	InitializationTimeMs float64 `json:"initialization_time_ms"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	CacheSize            int     `json:"cache_size"`
	BackgroundQueueDepth int     `json:"background_queue_depth"`
}
