package decode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errEmptyImage        = errors.New("decoder returned an empty image")
	errVipsUnavailable   = errors.New("libvips not available")
	errNoEmbeddedImage   = errors.New("no embedded preview found")
	errUnsupportedLayout = errors.New("unsupported raw layout")
)

// dngHint is appended to RAW parser failures caused by files the minimal
// parser cannot interpret.
const dngHint = "try converting to DNG (lossless) or using a supported camera profile"

// Attempt records one backend's failure.
type Attempt struct {
	Backend string
	Err     error
}

// DecodeError is returned when every backend in the chain failed.
type DecodeError struct {
	Path     string
	Attempts []Attempt
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to decode image %s", e.Path)
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Backend, a.Err)
	}
	return b.String()
}

// Unwrap exposes every backend error to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// BufferShapeError reports a decoded sample buffer whose length is not a
// whole multiple of width*height.
type BufferShapeError struct {
	Len    int
	Width  int
	Height int
}

func (e *BufferShapeError) Error() string {
	return fmt.Sprintf("unexpected buffer size (%d samples for %dx%d)", e.Len, e.Width, e.Height)
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("decoder panicked: %v", e.value)
}

// channelsFromLen infers the interleaved channel count of a sample buffer.
func channelsFromLen(n, width, height int) (int, error) {
	pixels := width * height
	if pixels <= 0 || n/pixels == 0 || n%pixels != 0 {
		return 0, &BufferShapeError{Len: n, Width: width, Height: height}
	}
	return n / pixels, nil
}
