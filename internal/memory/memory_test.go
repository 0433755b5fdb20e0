package memory

import (
	"context"
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Zero(t, cfg.MemoryLimitBytes)
	assert.Equal(t, 0.7, cfg.HighWaterMark)
	assert.Equal(t, 0.85, cfg.CriticalWaterMark)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval)
	assert.Less(t, cfg.HighWaterMark, cfg.CriticalWaterMark)
}

func TestConfigureFromEnv(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")

	t.Run("unset", func(t *testing.T) {
		t.Setenv("MEMORY_LIMIT", "")
		result := ConfigureFromEnv()
		assert.False(t, result.Configured)
		assert.Equal(t, "none", result.Source)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("MEMORY_LIMIT", "lots")
		result := ConfigureFromEnv()
		assert.False(t, result.Configured)
		assert.Equal(t, "none", result.Source)
	})

	t.Run("default ratio", func(t *testing.T) {
		t.Setenv("MEMORY_LIMIT", "1073741824")
		t.Setenv("MEMORY_RATIO", "")
		result := ConfigureFromEnv()

		require.True(t, result.Configured)
		assert.Equal(t, "MEMORY_LIMIT", result.Source)
		assert.Equal(t, int64(1073741824), result.ContainerLimit)
		assert.Equal(t, DefaultMemoryRatio, result.Ratio)
		// 0.85 of 1 GiB, truncated.
		assert.Equal(t, int64(912680550), result.GoMemLimit)
		assert.Equal(t, result.GoMemLimit, debug.SetMemoryLimit(-1))
	})

	t.Run("custom ratio", func(t *testing.T) {
		t.Setenv("MEMORY_LIMIT", "1000000")
		t.Setenv("MEMORY_RATIO", "0.5")
		result := ConfigureFromEnv()
		assert.Equal(t, int64(500000), result.GoMemLimit)
	})
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", DefaultMemoryRatio},
		{"0.6", 0.6},
		{"1", 1},
		{"0", DefaultMemoryRatio},
		{"1.5", DefaultMemoryRatio},
		{"half", DefaultMemoryRatio},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRatio(tt.raw), "raw %q", tt.raw)
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(1536*1024))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestMonitorWithoutLimitNeverPauses(t *testing.T) {
	restoreMemoryLimit(t)
	debug.SetMemoryLimit(1<<63 - 1)

	m := NewMonitor(DefaultConfig())
	m.observe(1 << 40)

	assert.Zero(t, m.Limit())
	assert.False(t, m.IsPaused())
	assert.Zero(t, m.GetUsage())
	assert.NoError(t, m.WaitIfPaused(context.Background()))
}

func TestMonitorPausesAndResumes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1000
	m := NewMonitor(cfg)

	critical := make(chan struct{}, 1)
	m.OnCritical(func() { critical <- struct{}{} })

	m.observe(900)
	assert.True(t, m.IsPaused())
	assert.InDelta(t, 0.9, m.GetUsage(), 1e-9)

	select {
	case <-critical:
	case <-time.After(time.Second):
		t.Fatal("OnCritical hook was not called")
	}

	done := make(chan error, 1)
	go func() { done <- m.WaitIfPaused(context.Background()) }()

	// Between the marks the pause holds.
	m.observe(800)
	assert.True(t, m.IsPaused())

	m.observe(100)
	assert.False(t, m.IsPaused())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released on recovery")
	}
}

func TestWaitIfPausedHonoursContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1000
	m := NewMonitor(cfg)
	m.observe(950)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.WaitIfPaused(ctx), context.Canceled)
}

func TestStopReleasesWaiters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1000
	m := NewMonitor(cfg)
	m.observe(950)

	done := make(chan error, 1)
	go func() { done <- m.WaitIfPaused(context.Background()) }()

	m.Stop()
	m.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released on stop")
	}
}
