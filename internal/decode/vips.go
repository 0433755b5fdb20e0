package decode

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"openroom/internal/logging"
	"openroom/internal/raster"
)

var (
	vipsMu        sync.Mutex
	vipsAvailable bool
)

// vipsLogging returns a handler that forwards libvips messages into our
// logger, and the libvips threshold matching the application log level.
func vipsLogging(level logging.LogLevel) (func(string, vips.LogLevel, string), vips.LogLevel) {
	vlog := logging.For("vips")
	forward := func(domain string, l vips.LogLevel, msg string) {
		switch l {
		case vips.LogLevelError, vips.LogLevelCritical:
			vlog.Error("%s: %s", domain, msg)
		case vips.LogLevelWarning:
			vlog.Warn("%s: %s", domain, msg)
		default:
			vlog.Debug("%s: %s", domain, msg)
		}
	}

	switch level {
	case logging.LevelDebug:
		return forward, vips.LogLevelInfo
	case logging.LevelWarn, logging.LevelError:
		return forward, vips.LogLevelError
	default:
		return forward, vips.LogLevelWarning
	}
}

// InitVips starts libvips for the RAW backend. It is safe to call more than
// once; only the first call has an effect.
func InitVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		return
	}

	vips.LoggingSettings(vipsLogging(logging.GetLevel()))

	// RAW frames are large; keep the operation cache small and let the
	// render worker pool provide the parallelism.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      64 * 1024 * 1024,
		MaxCacheSize:     50,
	})

	vipsAvailable = true
	log.Info("libvips initialized (version: %s)", vips.Version)
}

// ShutdownVips releases libvips.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		log.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

type vipsBackend struct{}

// VipsBackend decodes RAW formats through libvips, asking for 16-bit output
// first and falling back to 8-bit. It fails fast when InitVips was not called.
func VipsBackend() Backend { return vipsBackend{} }

func (vipsBackend) Name() string { return "libvips" }

func (vipsBackend) Decode(src *Source) (*raster.Image, error) {
	if !IsVipsAvailable() {
		return nil, errVipsUnavailable
	}
	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}

	img, err16 := vipsDecode16(data)
	if err16 == nil {
		return img, nil
	}
	img, err8 := vipsDecode8(data)
	if err8 == nil {
		return img, nil
	}
	return nil, fmt.Errorf("16-bit: %w; 8-bit: %w", err16, err8)
}

func vipsLoad(data []byte) (*vips.ImageRef, error) {
	ref, err := vips.LoadImageFromBuffer(data, vips.NewImportParams())
	if err != nil {
		return nil, err
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, fmt.Errorf("auto-rotate: %w", err)
	}
	return ref, nil
}

func vipsDecode16(data []byte) (*raster.Image, error) {
	ref, err := vipsLoad(data)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	if ref.BandFormat() != vips.BandFormatUshort {
		return nil, fmt.Errorf("source is not 16-bit (band format %v)", ref.BandFormat())
	}

	pix, err := ref.ToBytes()
	if err != nil {
		return nil, err
	}
	w, h := ref.Width(), ref.Height()
	channels, err := channelsFromLen(len(pix)/2, w, h)
	if err != nil {
		return nil, err
	}
	if len(pix)%2 != 0 {
		return nil, &BufferShapeError{Len: len(pix), Width: w, Height: h}
	}

	samples := make([]uint16, len(pix)/2)
	for i := range samples {
		samples[i] = binary.NativeEndian.Uint16(pix[2*i:])
	}
	return raster.FromInterleaved16(samples, w, h, channels), nil
}

func vipsDecode8(data []byte) (*raster.Image, error) {
	ref, err := vipsLoad(data)
	if err != nil {
		return nil, err
	}
	defer ref.Close()

	if ref.BandFormat() != vips.BandFormatUchar {
		if err := ref.ToColorSpace(vips.InterpretationSRGB); err != nil {
			return nil, fmt.Errorf("convert to sRGB: %w", err)
		}
	}
	if ref.BandFormat() != vips.BandFormatUchar {
		return nil, fmt.Errorf("source is not 8-bit (band format %v)", ref.BandFormat())
	}

	pix, err := ref.ToBytes()
	if err != nil {
		return nil, err
	}
	w, h := ref.Width(), ref.Height()
	channels, err := channelsFromLen(len(pix), w, h)
	if err != nil {
		return nil, err
	}
	return raster.FromInterleaved8(pix, w, h, channels), nil
}
