package gpu

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openroom/internal/raster"
	"openroom/internal/recipe"
)

type fakeDevice struct {
	maxDim    int
	maxBytes  int64
	resizes   atomic.Int32
	grades    atomic.Int32
	inFlight  atomic.Int32
	overlap   atomic.Bool
	failGrade bool
	closed    bool
}

func (f *fakeDevice) Name() string          { return "fake" }
func (f *fakeDevice) MaxDimension() int     { return f.maxDim }
func (f *fakeDevice) MaxBufferBytes() int64 { return f.maxBytes }
func (f *fakeDevice) Close()                { f.closed = true }

func (f *fakeDevice) enter() func() {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeDevice) Resize(src *raster.Image, w, h int) (*raster.Image, error) {
	defer f.enter()()
	f.resizes.Add(1)
	return raster.New(w, h), nil
}

func (f *fakeDevice) Grade(src *raster.Image, _ recipe.GlobalParams) (*raster.Image, error) {
	defer f.enter()()
	f.grades.Add(1)
	if f.failGrade {
		return nil, errors.New("device lost")
	}
	return src.Clone(), nil
}

func opener(dev Device, err error) (Opener, *atomic.Int32) {
	calls := &atomic.Int32{}
	return func() (Device, error) {
		calls.Add(1)
		return dev, err
	}, calls
}

func TestStateStartsUninitialized(t *testing.T) {
	open, calls := opener(&fakeDevice{}, nil)
	ctx := NewContext(open)

	assert.Equal(t, StateUninitialized, ctx.State())
	assert.Equal(t, int32(0), calls.Load(), "State must not trigger initialization")
	assert.Empty(t, ctx.Adapter())
}

func TestLazyInitOnFirstUse(t *testing.T) {
	dev := &fakeDevice{}
	open, calls := opener(dev, nil)
	ctx := NewContext(open)

	out, err := ctx.Resize(raster.New(100, 50), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Width)
	assert.Equal(t, 5, out.Height)
	assert.Equal(t, StateReady, ctx.State())
	assert.Equal(t, "fake", ctx.Adapter())
	assert.Equal(t, int32(1), calls.Load())
	assert.NoError(t, ctx.Err())
}

func TestFailedOpenIsPermanent(t *testing.T) {
	open, calls := opener(nil, errors.New("no adapter"))
	ctx := NewContext(open)

	_, err := ctx.Grade(raster.New(4, 4), recipe.GlobalParams{ExposureMul: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = ctx.Resize(raster.New(4, 4), 2, 2)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.Equal(t, StateFailed, ctx.State())
	assert.Equal(t, int32(1), calls.Load(), "initialization must not be retried")
	assert.ErrorContains(t, ctx.Err(), "no adapter")
	assert.ErrorIs(t, ctx.Init(), ErrUnavailable)
}

func TestPanickingOpenIsContained(t *testing.T) {
	ctx := NewContext(func() (Device, error) {
		panic("driver exploded")
	})

	require.NotPanics(t, func() {
		_, err := ctx.Resize(raster.New(4, 4), 2, 2)
		assert.ErrorIs(t, err, ErrUnavailable)
	})
	assert.Equal(t, StateFailed, ctx.State())
	assert.ErrorContains(t, ctx.Err(), "driver exploded")
}

func TestNilDeviceFails(t *testing.T) {
	open, _ := opener(nil, nil)
	ctx := NewContext(open)

	assert.Error(t, ctx.Init())
	assert.Equal(t, StateFailed, ctx.State())
}

func TestDisabled(t *testing.T) {
	ctx := Disabled("GPU_ENABLED=false")

	assert.Equal(t, StateFailed, ctx.State())
	assert.ErrorContains(t, ctx.Err(), "GPU_ENABLED=false")
	_, err := ctx.Grade(raster.New(1, 1), recipe.GlobalParams{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGuardrails(t *testing.T) {
	tests := []struct {
		name      string
		dev       *fakeDevice
		srcW      int
		srcH      int
		dstW      int
		dstH      int
		wantError bool
	}{
		{name: "within limits", dev: &fakeDevice{}, srcW: 4000, srcH: 3000, dstW: 1920, dstH: 1440},
		{name: "source too wide", dev: &fakeDevice{}, srcW: 9000, srcH: 10, dstW: 100, dstH: 1, wantError: true},
		{name: "destination too tall", dev: &fakeDevice{}, srcW: 100, srcH: 100, dstW: 10, dstH: 8193, wantError: true},
		{name: "device limit below safe limit", dev: &fakeDevice{maxDim: 2048}, srcW: 3000, srcH: 100, dstW: 100, dstH: 3, wantError: true},
		{name: "device limit above safe limit is capped", dev: &fakeDevice{maxDim: 16384}, srcW: 10000, srcH: 10, dstW: 10, dstH: 1, wantError: true},
		{name: "buffer limit", dev: &fakeDevice{maxBytes: 1024}, srcW: 32, srcH: 32, dstW: 8, dstH: 8, wantError: true},
		{name: "zero target", dev: &fakeDevice{}, srcW: 10, srcH: 10, dstW: 0, dstH: 10, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, _ := opener(tt.dev, nil)
			ctx := NewContext(open)
			src := &raster.Image{Width: tt.srcW, Height: tt.srcH}

			_, err := ctx.Resize(src, tt.dstW, tt.dstH)
			if tt.wantError {
				assert.ErrorIs(t, err, ErrUnavailable)
				assert.Equal(t, int32(0), tt.dev.resizes.Load(), "device must not be called")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, int32(1), tt.dev.resizes.Load())
			}
			assert.Equal(t, StateReady, ctx.State(), "guardrails do not fail the context")
		})
	}
}

func TestGradeChecksSourceSize(t *testing.T) {
	dev := &fakeDevice{}
	open, _ := opener(dev, nil)
	ctx := NewContext(open)

	_, err := ctx.Grade(&raster.Image{Width: 8193, Height: 1}, recipe.GlobalParams{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(0), dev.grades.Load())
}

func TestDeviceErrorIsReturned(t *testing.T) {
	dev := &fakeDevice{failGrade: true}
	open, _ := opener(dev, nil)
	ctx := NewContext(open)

	_, err := ctx.Grade(raster.New(2, 2), recipe.GlobalParams{})
	assert.ErrorContains(t, err, "device lost")
	assert.Equal(t, StateReady, ctx.State())
}

func TestConcurrentUseInitializesOnceAndSerializes(t *testing.T) {
	dev := &fakeDevice{}
	open, calls := opener(dev, nil)
	ctx := NewContext(open)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := raster.New(16, 16)
			if i%2 == 0 {
				_, _ = ctx.Resize(src, 8, 8)
			} else {
				_, _ = ctx.Grade(src, recipe.GlobalParams{ExposureMul: 1})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(8), dev.resizes.Load())
	assert.Equal(t, int32(8), dev.grades.Load())
	assert.False(t, dev.overlap.Load(), "device calls must not overlap")
}

func TestClose(t *testing.T) {
	dev := &fakeDevice{}
	open, _ := opener(dev, nil)
	ctx := NewContext(open)
	require.NoError(t, ctx.Init())

	ctx.Close()
	ctx.Close()

	assert.True(t, dev.closed)
	_, err := ctx.Resize(raster.New(4, 4), 2, 2)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
