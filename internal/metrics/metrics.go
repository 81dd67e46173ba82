package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortform_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Render Metrics
	RendersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_renders_submitted_total",
			Help: "Total number of render jobs submitted",
		},
		[]string{"source"},
	)

	RendersCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_renders_completed_total",
			Help: "Total number of finished render jobs by outcome",
		},
		[]string{"status"},
	)

	RendersInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortform_renders_in_progress",
			Help: "Number of renders currently being processed",
		},
	)

	RendersByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shortform_renders",
			Help: "Number of stored renders by status",
		},
		[]string{"status"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shortform_queue_depth",
			Help: "Messages waiting in each render queue",
		},
		[]string{"queue"},
	)

	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortform_render_duration_seconds",
			Help:    "Wall time of a complete render in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1s to ~17min
		},
	)

	RenderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_render_retries_total",
			Help: "Total number of retried render attempts",
		},
		[]string{"operation"},
	)

	// Stage Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortform_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_stage_failures_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	// Narration Metrics
	NarrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortform_narration_duration_seconds",
			Help:    "Measured length of trimmed narrations",
			Buckets: []float64{2, 4, 6, 8, 10, 15, 20, 30, 45, 60},
		},
	)

	AlignmentDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortform_alignment_degraded_total",
			Help: "Narrations returned untrimmed because the preamble boundary was not found",
		},
	)

	SubtitleCues = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortform_subtitle_cues",
			Help:    "Number of caption cues per render",
			Buckets: prometheus.LinearBuckets(0, 10, 10),
		},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortform_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortform_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortform_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRenderSubmitted records a new render job
func RecordRenderSubmitted(source string) {
	RendersSubmittedTotal.WithLabelValues(source).Inc()
}

// RecordRenderCompleted records the outcome of a render
func RecordRenderCompleted(status string, duration float64) {
	RendersCompletedTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		RenderDuration.Observe(duration)
	}
}

// RecordRetry records a retried attempt of operation
func RecordRetry(operation string) {
	RenderRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordStage records the duration and outcome of a pipeline stage
func RecordStage(stage string, duration float64, err error) {
	StageDuration.WithLabelValues(stage).Observe(duration)
	if err != nil {
		StageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// RecordNarration records the trimmed narration length and whether alignment degraded
func RecordNarration(duration float64, trimmed bool) {
	NarrationDuration.Observe(duration)
	if !trimmed {
		AlignmentDegradedTotal.Inc()
	}
}

// RecordSubtitleCues records how many caption cues a render produced
func RecordSubtitleCues(n int) {
	SubtitleCues.Observe(float64(n))
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// Status returns the label used for an operation outcome
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
