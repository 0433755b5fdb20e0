package metrics

// Decode backend names as reported in the backend label.
var decodeBackends = []string{"imaging", "memory", "libvips", "rawparse", "dummy"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, b := range decodeBackends {
		DecodeAttemptsTotal.WithLabelValues(b, "success")
		DecodeAttemptsTotal.WithLabelValues(b, "error")
		DecodeDuration.WithLabelValues(b)
	}

	for _, tier := range []string{"master", "variant"} {
		PreviewCacheRequests.WithLabelValues(tier, "hit")
		PreviewCacheRequests.WithLabelValues(tier, "miss")
	}

	for _, op := range []string{"resize", "grade"} {
		GPUOperationsTotal.WithLabelValues(op, "gpu")
		GPUOperationsTotal.WithLabelValues(op, "fallback")
	}

	for _, kind := range []string{"preview", "thumbnail"} {
		RenderDuration.WithLabelValues(kind)
		RenderErrorsTotal.WithLabelValues(kind)
		RenderJobsActive.WithLabelValues(kind)
	}

	for _, result := range []string{"hit", "miss", "placeholder"} {
		ThumbnailCacheTotal.WithLabelValues(result)
	}

	for _, op := range []string{"stat", "read"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}
}
