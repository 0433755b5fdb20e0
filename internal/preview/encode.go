package preview

import (
	"bytes"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"openroom/internal/raster"
)

// EncodeError reports a failure to serialize a rendered image.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return "failed to encode PNG: " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

// rgba8 keeps the PNG encoder from dropping the alpha channel of opaque
// images, so every preview is 8-bit RGBA.
type rgba8 struct{ *image.NRGBA }

func (rgba8) Opaque() bool { return false }

// Encode serializes img as an RGBA PNG using the fastest compression level;
// previews are regenerated often, so speed wins over size.
func Encode(img *raster.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rgba8{img.NRGBA()}, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed)); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}
