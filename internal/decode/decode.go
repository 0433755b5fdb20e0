package decode

import (
	"sync"
	"time"

	"openroom/internal/filesystem"
	"openroom/internal/logging"
	"openroom/internal/raster"
)

var log = logging.For("decode")

// Backend is one stage of the decode chain.
type Backend interface {
	Name() string
	Decode(src *Source) (*raster.Image, error)
}

// Source is the file being decoded. Its bytes are read at most once and
// shared by every backend that needs them.
type Source struct {
	Path string

	once sync.Once
	data []byte
	err  error
}

// NewSource returns a Source for path without touching the filesystem.
func NewSource(path string) *Source {
	return &Source{Path: path}
}

// Bytes returns the file contents.
func (s *Source) Bytes() ([]byte, error) {
	s.once.Do(func() {
		s.data, s.err = filesystem.ReadFileWithRetry(s.Path, filesystem.DefaultRetryConfig())
	})
	return s.data, s.err
}

// Observer receives one call per backend attempt and one per file that no
// backend could decode.
type Observer interface {
	ObserveAttempt(backend string, durationSeconds float64, err error)
	ObserveFailure(path string)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, float64, error) {}
func (nopObserver) ObserveFailure(string)                 {}

// Chain tries each backend in order.
type Chain struct {
	backends []Backend
	observer Observer
}

// NewChain builds a chain over the given backends.
func NewChain(backends ...Backend) *Chain {
	return &Chain{backends: backends, observer: nopObserver{}}
}

// Default returns the standard five-stage chain.
func Default() *Chain {
	return NewChain(
		ImagingBackend(),
		MemoryBackend(),
		VipsBackend(),
		RawBackend(),
		DummyBackend(),
	)
}

// WithObserver sets the attempt observer and returns the chain.
func (c *Chain) WithObserver(o Observer) *Chain {
	if o == nil {
		o = nopObserver{}
	}
	c.observer = o
	return c
}

// Backends lists backend names in chain order.
func (c *Chain) Backends() []string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return names
}

// Decode returns the first successful decode of path. The result is a fresh
// buffer the caller owns.
func (c *Chain) Decode(path string) (*raster.Image, error) {
	src := NewSource(path)
	derr := &DecodeError{Path: path}

	for _, b := range c.backends {
		img, err := c.attempt(b, src)
		if err == nil {
			if len(derr.Attempts) > 0 {
				log.Debug("%s decoded by %s after %d failed attempts", path, b.Name(), len(derr.Attempts))
			}
			return img, nil
		}
		derr.Attempts = append(derr.Attempts, Attempt{Backend: b.Name(), Err: err})
	}

	c.observer.ObserveFailure(path)
	log.Warn("no backend could decode %s", path)
	return nil, derr
}

func (c *Chain) attempt(b Backend, src *Source) (img *raster.Image, err error) {
	start := time.Now()
	defer func() {
		// A panicking codec must not take down the chain.
		if r := recover(); r != nil {
			img, err = nil, &panicError{value: r}
		}
		c.observer.ObserveAttempt(b.Name(), time.Since(start).Seconds(), err)
	}()

	img, err = b.Decode(src)
	if err == nil && (img == nil || img.Width == 0 || img.Height == 0) {
		img, err = nil, errEmptyImage
	}
	return img, err
}
