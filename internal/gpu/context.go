package gpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"openroom/internal/logging"
	"openroom/internal/metrics"
	"openroom/internal/raster"
	"openroom/internal/recipe"
)

var log = logging.For("gpu")

// ErrUnavailable is returned when the GPU cannot serve a request: the device
// failed to initialize, is disabled, or the job exceeds safe limits.
var ErrUnavailable = errors.New("gpu unavailable")

// Safety limits applied regardless of what the device reports.
const (
	MaxSafeDimension = 8192
	MaxSafePixels    = 150_000_000
)

// State is the lifecycle of a Context.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Device is an opened GPU able to run the two pipeline kinds.
type Device interface {
	Name() string
	// MaxDimension is the largest image side the device accepts.
	MaxDimension() int
	// MaxBufferBytes is the largest single storage binding.
	MaxBufferBytes() int64
	Resize(src *raster.Image, width, height int) (*raster.Image, error)
	Grade(src *raster.Image, params recipe.GlobalParams) (*raster.Image, error)
	Close()
}

// Opener creates the device. It may block and may panic; both are handled.
type Opener func() (Device, error)

// Context is the lazily initialized GPU singleton.
type Context struct {
	open Opener

	once   sync.Once
	state  atomic.Int32
	device Device
	err    error

	// mu serializes submissions and guards device after Close.
	mu     sync.Mutex
	closed bool
}

// NewContext returns an uninitialized context that will call open on first
// use.
func NewContext(open Opener) *Context {
	return &Context{open: open}
}

// Disabled returns a context that is already Failed.
func Disabled(reason string) *Context {
	c := &Context{}
	c.once.Do(func() {
		c.err = fmt.Errorf("disabled: %s", reason)
		c.setState(StateFailed)
	})
	return c
}

// State reports the current state without triggering initialization.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Err returns the initialization failure, if any.
func (c *Context) Err() error {
	if c.State() != StateFailed {
		return nil
	}
	return c.err
}

// Init forces initialization and reports whether the device is ready.
func (c *Context) Init() error {
	if c.ensure() {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, c.err)
}

// Adapter returns the device name, or "" when not ready.
func (c *Context) Adapter() string {
	if c.State() != StateReady {
		return ""
	}
	return c.device.Name()
}

func (c *Context) setState(s State) {
	c.state.Store(int32(s))
	metrics.GPUState.Set(float64(s))
}

func (c *Context) ensure() bool {
	c.once.Do(c.initialize)
	return c.State() == StateReady
}

func (c *Context) initialize() {
	c.setState(StateInitializing)

	dev, err := c.safeOpen()
	if err == nil && dev == nil {
		err = errors.New("backend returned no device")
	}
	if err != nil {
		c.err = err
		c.setState(StateFailed)
		log.Warn("GPU unavailable, using CPU paths: %v", err)
		return
	}

	c.device = dev
	c.setState(StateReady)
	log.Info("GPU ready: %s (max dimension %d)", dev.Name(), c.maxDimension())
}

func (c *Context) safeOpen() (dev Device, err error) {
	defer func() {
		if r := recover(); r != nil {
			dev, err = nil, fmt.Errorf("initialization panicked: %v", r)
		}
	}()
	if c.open == nil {
		return nil, errors.New("no GPU backend configured")
	}
	return c.open()
}

func (c *Context) maxDimension() int {
	if d := c.device.MaxDimension(); d > 0 && d < MaxSafeDimension {
		return d
	}
	return MaxSafeDimension
}

// fits reports whether a width x height RGBA image is within every limit.
func (c *Context) fits(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	maxDim := c.maxDimension()
	if width > maxDim || height > maxDim {
		return false
	}
	pixels := int64(width) * int64(height)
	if pixels > MaxSafePixels {
		return false
	}
	if limit := c.device.MaxBufferBytes(); limit > 0 && 4*pixels > limit {
		return false
	}
	return true
}

// Resize scales src to exactly width x height with bilinear filtering.
func (c *Context) Resize(src *raster.Image, width, height int) (*raster.Image, error) {
	if !c.ensure() {
		return c.fallback("resize", ErrUnavailable)
	}
	if !c.fits(src.Width, src.Height) || !c.fits(width, height) {
		return c.fallback("resize", fmt.Errorf("%w: %dx%d -> %dx%d exceeds limits",
			ErrUnavailable, src.Width, src.Height, width, height))
	}
	return c.submit("resize", func(d Device) (*raster.Image, error) {
		return d.Resize(src, width, height)
	})
}

// Grade applies the global adjustment formula to every pixel of src.
func (c *Context) Grade(src *raster.Image, params recipe.GlobalParams) (*raster.Image, error) {
	if !c.ensure() {
		return c.fallback("grade", ErrUnavailable)
	}
	if !c.fits(src.Width, src.Height) {
		return c.fallback("grade", fmt.Errorf("%w: %dx%d exceeds limits", ErrUnavailable, src.Width, src.Height))
	}
	return c.submit("grade", func(d Device) (*raster.Image, error) {
		return d.Grade(src, params)
	})
}

func (c *Context) submit(op string, run func(Device) (*raster.Image, error)) (out *raster.Image, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.fallback(op, ErrUnavailable)
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = c.fallback(op, fmt.Errorf("%s panicked: %v", op, r))
		}
	}()

	out, err = run(c.device)
	if err != nil {
		log.Debug("%s failed on GPU: %v", op, err)
		return c.fallback(op, err)
	}
	metrics.GPUOperationsTotal.WithLabelValues(op, "gpu").Inc()
	return out, nil
}

func (c *Context) fallback(op string, err error) (*raster.Image, error) {
	metrics.GPUOperationsTotal.WithLabelValues(op, "fallback").Inc()
	return nil, err
}

// Close releases the device. Later operations return ErrUnavailable.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	if c.State() == StateReady && c.device != nil {
		c.device.Close()
		log.Info("GPU device released")
	}
}
