package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	calls int
}

func (m *mockStatsProvider) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestInitializeMetricsDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, InitializeMetrics)
	assert.NotPanics(t, InitializeMetrics, "second call must be idempotent")
}

func TestDecodeObserver(t *testing.T) {
	obs := NewDecodeObserver()

	okBefore := testutil.ToFloat64(DecodeAttemptsTotal.WithLabelValues("memory", "success"))
	errBefore := testutil.ToFloat64(DecodeAttemptsTotal.WithLabelValues("memory", "error"))
	failBefore := testutil.ToFloat64(DecodeFailuresTotal)

	obs.ObserveAttempt("memory", 0.01, nil)
	obs.ObserveAttempt("memory", 0.02, errors.New("boom"))
	obs.ObserveFailure("/tmp/x.raw")

	assert.Equal(t, okBefore+1, testutil.ToFloat64(DecodeAttemptsTotal.WithLabelValues("memory", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(DecodeAttemptsTotal.WithLabelValues("memory", "error")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(DecodeFailuresTotal))
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()

	staleBefore := testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("read"))
	attemptBefore := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("read"))
	successBefore := testutil.ToFloat64(FilesystemRetrySuccess.WithLabelValues("read"))
	failBefore := testutil.ToFloat64(FilesystemRetryFailures.WithLabelValues("stat"))

	obs.ObserveStaleError("read")
	obs.ObserveRetryAttempt("read")
	obs.ObserveRetrySuccess("read")
	obs.ObserveRetryFailure("stat")

	assert.Equal(t, staleBefore+1, testutil.ToFloat64(FilesystemStaleErrors.WithLabelValues("read")))
	assert.Equal(t, attemptBefore+1, testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("read")))
	assert.Equal(t, successBefore+1, testutil.ToFloat64(FilesystemRetrySuccess.WithLabelValues("read")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(FilesystemRetryFailures.WithLabelValues("stat")))
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		ResidentMasters: 2,
		Variants:        5,
		GPUState:        3,
		PreviewJobs:     4,
		ThumbnailJobs:   1,
	}}
	c := NewCollector(provider, time.Hour)

	c.sample()

	assert.Equal(t, 2.0, testutil.ToFloat64(PreviewCacheResidentMasters))
	assert.Equal(t, 5.0, testutil.ToFloat64(PreviewCacheVariants))
	assert.Equal(t, 3.0, testutil.ToFloat64(GPUState))
	assert.Equal(t, 4.0, testutil.ToFloat64(RenderJobsActive.WithLabelValues("preview")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RenderJobsActive.WithLabelValues("thumbnail")))
	assert.Equal(t, provider.stats, c.last)
}

func TestCollectorWithNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	assert.NotPanics(t, c.sample)
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 5*time.Millisecond)

	c.Start()
	c.Start()
	assert.Eventually(t, func() bool { return provider.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	c.Stop()

	calls := provider.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, provider.callCount(), "no samples after Stop returns")
	assert.NotPanics(t, c.Stop)
}

func TestCollectorStopWithoutStart(t *testing.T) {
	c := NewCollector(&mockStatsProvider{}, time.Hour)
	assert.NotPanics(t, c.Stop)
}
