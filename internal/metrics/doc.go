// Package metrics provides Prometheus instrumentation for openroom.
//
// All metrics are prefixed with "openroom_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them on /metrics.
//
// # Metric Categories
//
// ## HTTP Metrics
//
// Recorded by the metrics middleware:
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests being processed
//
// ## Decode Metrics
//
// One sample per backend attempted in the decode fallback chain:
//   - DecodeAttemptsTotal: Counter by backend and status
//   - DecodeDuration: Histogram of time spent per backend
//   - DecodeFailuresTotal: Counter of files no backend could decode
//
// ## Preview Cache Metrics
//
//   - PreviewCacheRequests: Counter by tier (master, variant) and result (hit, miss)
//   - PreviewCacheEvictions: Counter of assets evicted by the recency policy
//   - PreviewCacheResidentMasters, PreviewCacheVariants: Gauges refreshed by the Collector
//
// ## GPU Metrics
//
//   - GPUState: Gauge mirroring the GPU context state machine
//   - GPUOperationsTotal: Counter by op (resize, grade) and result (gpu, fallback)
//
// ## Render Metrics
//
//   - RenderDuration: Histogram by kind (preview, thumbnail)
//   - RenderErrorsTotal: Counter by kind
//   - ThumbnailCacheTotal: Counter by result (hit, miss, placeholder)
//   - ThumbnailWriteErrors: Counter of thumbnails that could not be persisted
//
// # Initialization
//
// InitializeMetrics pre-populates label combinations so dashboards see zero
// values before the first event. The Collector polls a StatsProvider for the
// gauges that describe resident state rather than events.
package metrics
