// Package monitoring exposes Prometheus metrics for the storage tiers.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the engine. Collectors are
// registered against a private registry so multiple engines (tests) can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheSize      prometheus.Gauge

	// Background loader metrics
	LoadsCompleted prometheus.Counter
	LoadsFailed    prometheus.Counter
	LoadsRetried   prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Archive metrics
	SessionsArchived prometheus.Counter
	SessionsRestored prometheus.Counter
	ArchiveFailures  prometheus.Counter
	BytesOriginal    prometheus.Counter
	BytesCompressed  prometheus.Counter
	SweepDuration    prometheus.Histogram

	// Snapshot for JSON API
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats surface.
type Snapshot struct {
	CacheHits        int64 `json:"cache_hits"`
	CacheMisses      int64 `json:"cache_misses"`
	SessionsArchived int64 `json:"sessions_archived"`
	SessionsRestored int64 `json:"sessions_restored"`
	SpaceSavedBytes  int64 `json:"space_saved_bytes"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_cache_hits_total",
			Help: "Total number of session cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_cache_misses_total",
			Help: "Total number of session cache misses",
		}),
		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		}),
		CacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sessionstore_cache_entries",
			Help: "Current number of cached records",
		}),

		LoadsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_background_loads_completed_total",
			Help: "Total number of completed background loads",
		}),
		LoadsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_background_loads_failed_total",
			Help: "Total number of background loads that failed after retry",
		}),
		LoadsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_background_loads_retried_total",
			Help: "Total number of background load retries",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sessionstore_background_queue_depth",
			Help: "Current number of queued background loads",
		}),

		SessionsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_sessions_archived_total",
			Help: "Total number of sessions promoted to the archive",
		}),
		SessionsRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_sessions_restored_total",
			Help: "Total number of sessions restored from the archive",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_archive_failures_total",
			Help: "Total number of per-session archiving failures",
		}),
		BytesOriginal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_archive_original_bytes_total",
			Help: "Total uncompressed bytes promoted to the archive",
		}),
		BytesCompressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessionstore_archive_compressed_bytes_total",
			Help: "Total compressed bytes written to the archive",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sessionstore_sweep_duration_seconds",
			Help:    "Archive sweep duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		}),
	}
}

// Registry returns the private registry for scrape handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
	m.mu.Lock()
	m.snapshot.CacheMisses++
	m.mu.Unlock()
}

// RecordEviction records a cache eviction and the resulting size.
func (m *Metrics) RecordEviction(size int) {
	m.CacheEvictions.Inc()
	m.CacheSize.Set(float64(size))
}

// SetCacheSize sets the current cache entry count.
func (m *Metrics) SetCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// RecordLoadDone records a completed background load.
func (m *Metrics) RecordLoadDone() {
	m.LoadsCompleted.Inc()
}

// RecordLoadFailed records a background load that failed after retry.
func (m *Metrics) RecordLoadFailed() {
	m.LoadsFailed.Inc()
}

// RecordLoadRetried records a background load retry.
func (m *Metrics) RecordLoadRetried() {
	m.LoadsRetried.Inc()
}

// SetQueueDepth sets the current background queue depth.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}

// RecordArchived records one promoted session and its sizes.
func (m *Metrics) RecordArchived(originalBytes, compressedBytes int64) {
	m.SessionsArchived.Inc()
	m.BytesOriginal.Add(float64(originalBytes))
	m.BytesCompressed.Add(float64(compressedBytes))

	m.mu.Lock()
	m.snapshot.SessionsArchived++
	m.snapshot.SpaceSavedBytes += originalBytes - compressedBytes
	m.mu.Unlock()
}

// RecordRestored records one session restored from the archive.
func (m *Metrics) RecordRestored() {
	m.SessionsRestored.Inc()
	m.mu.Lock()
	m.snapshot.SessionsRestored++
	m.mu.Unlock()
}

// RecordArchiveFailure records a per-session archiving failure.
func (m *Metrics) RecordArchiveFailure() {
	m.ArchiveFailures.Inc()
}

// RecordSweep records the duration of one archive sweep.
func (m *Metrics) RecordSweep(d time.Duration) {
	m.SweepDuration.Observe(d.Seconds())
}

// CurrentSnapshot returns a copy of the JSON snapshot values.
func (m *Metrics) CurrentSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
