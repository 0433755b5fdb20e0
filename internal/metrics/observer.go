package metrics

import (
	"openroom/internal/decode"
	"openroom/internal/filesystem"
)

// decodeObserver implements decode.Observer using the Prometheus metrics
// declared in this package.
type decodeObserver struct{}

// NewDecodeObserver creates an observer that records per-backend decode
// attempts into the counters and histograms declared in metrics.go.
func NewDecodeObserver() decode.Observer {
	return decodeObserver{}
}

func (decodeObserver) ObserveAttempt(backend string, durationSeconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DecodeAttemptsTotal.WithLabelValues(backend, status).Inc()
	DecodeDuration.WithLabelValues(backend).Observe(durationSeconds)
}

func (decodeObserver) ObserveFailure(string) {
	DecodeFailuresTotal.Inc()
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver returns an observer that records NFS retry outcomes.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveRetryAttempt(op string) { FilesystemRetryAttempts.WithLabelValues(op).Inc() }
func (filesystemObserver) ObserveRetrySuccess(op string) { FilesystemRetrySuccess.WithLabelValues(op).Inc() }
func (filesystemObserver) ObserveRetryFailure(op string) { FilesystemRetryFailures.WithLabelValues(op).Inc() }
func (filesystemObserver) ObserveStaleError(op string)   { FilesystemStaleErrors.WithLabelValues(op).Inc() }
