package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode metrics
var (
	DecodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosort_decodes_total",
			Help: "Total number of decode attempts",
		},
		[]string{"class", "status"},
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosort_decode_duration_seconds",
			Help:    "Decode duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"class"},
	)

	StaleResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_stale_results_total",
			Help: "Decode results discarded because their generation was superseded",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photosort_queue_depth",
			Help: "Number of decode requests waiting per pool",
		},
		[]string{"pool"},
	)
)

// Preview cache metrics
var (
	PreviewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_preview_cache_hits_total",
			Help: "Preview cache hits",
		},
	)

	PreviewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_preview_cache_misses_total",
			Help: "Preview cache misses",
		},
	)

	PreviewCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_preview_cache_evictions_total",
			Help: "Preview cache entries evicted on overflow",
		},
	)

	PreviewCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosort_preview_cache_entries",
			Help: "Current preview cache entry count",
		},
	)
)

// Scanner metrics
var (
	FilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_files_scanned_total",
			Help: "Supported files discovered by folder scans",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_scan_errors_total",
			Help: "Errors encountered while scanning folders",
		},
	)

	ReloadsTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosort_reloads_triggered_total",
			Help: "Debounced thumbnail-size reloads that actually fired",
		},
	)
)

// Handler returns the Prometheus scrape handler for the status server.
func Handler() http.Handler {
	return promhttp.Handler()
}
