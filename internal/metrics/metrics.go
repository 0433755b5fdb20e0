package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openroom_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Decode metrics
var (
	DecodeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_decode_attempts_total",
			Help: "Decode attempts per backend in the fallback chain",
		},
		[]string{"backend", "status"}, // status: "success", "error"
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openroom_decode_duration_seconds",
			Help:    "Time spent in a single decode backend",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	DecodeFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openroom_decode_failures_total",
			Help: "Files for which every decode backend failed",
		},
	)
)

// Preview cache metrics
var (
	PreviewCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_preview_cache_requests_total",
			Help: "Preview cache lookups by tier and result",
		},
		[]string{"tier", "result"}, // tier: "master", "variant"; result: "hit", "miss"
	)

	PreviewCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openroom_preview_cache_evictions_total",
			Help: "Assets evicted from the preview cache",
		},
	)

	PreviewCacheResidentMasters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_preview_cache_resident_masters",
			Help: "Number of master previews currently held in memory",
		},
	)

	PreviewCacheVariants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_preview_cache_variants",
			Help: "Number of scaled variants currently held in memory",
		},
	)
)

// GPU metrics
var (
	GPUState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_gpu_state",
			Help: "GPU context state (0 = uninitialized, 1 = initializing, 2 = ready, 3 = failed)",
		},
	)

	GPUOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_gpu_operations_total",
			Help: "GPU operations by kind and whether the GPU served them",
		},
		[]string{"op", "result"}, // op: "resize", "grade"; result: "gpu", "fallback"
	)
)

// Render metrics
var (
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openroom_render_duration_seconds",
			Help:    "End-to-end render time including decode, grading and encode",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"}, // "preview", "thumbnail"
	)

	RenderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_render_errors_total",
			Help: "Renders that returned an error",
		},
		[]string{"kind"},
	)

	RenderJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "openroom_render_jobs_active",
			Help: "Render jobs holding a worker slot, sampled by the collector",
		},
		[]string{"kind"},
	)

	ThumbnailCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_thumbnail_cache_total",
			Help: "Thumbnail requests by outcome",
		},
		[]string{"result"}, // "hit", "miss", "placeholder"
	)

	ThumbnailWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openroom_thumbnail_write_errors_total",
			Help: "Thumbnails that rendered but could not be persisted",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openroom_memory_paused",
			Help: "Whether renders are paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openroom_memory_gc_pauses_total",
			Help: "Times renders were paused for memory pressure",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_filesystem_retry_attempts_total",
			Help: "Retries after an NFS stale file handle",
		},
		[]string{"op"}, // "stat", "read"
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"op"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"op"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openroom_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors seen",
		},
		[]string{"op"},
	)
)

// Build info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "openroom_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
