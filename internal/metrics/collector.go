package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"openroom/internal/logging"
)

var collectorLog = logging.For("metrics")

// StatsProvider reports the render service's resident state.
type StatsProvider interface {
	GetStats() Stats
}

// Stats is a point-in-time view of what the render service holds.
type Stats struct {
	ResidentMasters int
	Variants        int
	GPUState        int
	PreviewJobs     int
	ThumbnailJobs   int
}

// Collector samples a StatsProvider on an interval and publishes the
// preview cache, GPU and worker gauges. Counters are updated inline by
// the code that owns them; only resident state needs sampling.
type Collector struct {
	provider StatsProvider
	interval time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	last Stats
}

// NewCollector returns a collector for provider. A nil provider makes
// every sample a no-op.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start samples once immediately and then every interval.
func (c *Collector) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.loop()
}

// Stop ends sampling and waits for the loop to exit. Extra calls are no-ops.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

func (c *Collector) loop() {
	defer close(c.done)
	c.sample()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sample()
		case <-c.stop:
			return
		}
	}
}

// sample publishes one reading. Only the loop goroutine calls it once
// the collector is started.
func (c *Collector) sample() {
	if c.provider == nil {
		return
	}
	s := c.provider.GetStats()

	PreviewCacheResidentMasters.Set(float64(s.ResidentMasters))
	PreviewCacheVariants.Set(float64(s.Variants))
	GPUState.Set(float64(s.GPUState))
	RenderJobsActive.WithLabelValues("preview").Set(float64(s.PreviewJobs))
	RenderJobsActive.WithLabelValues("thumbnail").Set(float64(s.ThumbnailJobs))

	if s != c.last {
		collectorLog.Debug("cache %d masters/%d variants, gpu state %d, jobs %d preview/%d thumbnail",
			s.ResidentMasters, s.Variants, s.GPUState, s.PreviewJobs, s.ThumbnailJobs)
		c.last = s
	}
}
