package decode

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"openroom/internal/raster"
)

// maxPreviewCandidates bounds how many embedded JPEG start markers are tried.
const maxPreviewCandidates = 8

var jpegSOI = []byte{0xFF, 0xD8, 0xFF}

type dummyBackend struct{}

// DummyBackend is the last resort. It reads any uncompressed TIFF-structured
// raw frame without checking camera metadata, then falls back to the largest
// JPEG preview embedded in the file. Colors may be inaccurate but pixels are
// shown.
func DummyBackend() Backend { return dummyBackend{} }

func (dummyBackend) Name() string { return "dummy" }

func (dummyBackend) Decode(src *Source) (*raster.Image, error) {
	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}

	raw, rawErr := parseRaw(data, true)
	if rawErr == nil {
		img, err := Demosaic(raw)
		if err == nil {
			return img, nil
		}
		rawErr = err
	}

	img, prevErr := embeddedPreview(data)
	if prevErr != nil {
		return nil, fmt.Errorf("lenient raw: %v; embedded preview: %w", rawErr, prevErr)
	}
	return raster.FromImage(orient(img, orientation(data))), nil
}

// embeddedPreview decodes the largest JPEG stream found inside data, falling
// back to the EXIF thumbnail.
func embeddedPreview(data []byte) (image.Image, error) {
	var best image.Image
	bestArea := 0

	// Offset 0 is the file itself, which earlier backends already rejected.
	for off, tries := 1, 0; off < len(data) && tries < maxPreviewCandidates; {
		i := bytes.Index(data[off:], jpegSOI)
		if i < 0 {
			break
		}
		start := off + i
		off = start + len(jpegSOI)
		tries++

		img, err := imaging.Decode(bytes.NewReader(data[start:]))
		if err != nil {
			continue
		}
		if b := img.Bounds(); b.Dx()*b.Dy() > bestArea {
			best, bestArea = img, b.Dx()*b.Dy()
		}
	}
	if best != nil {
		return best, nil
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errNoEmbeddedImage
	}
	thumb, err := x.JpegThumbnail()
	if err != nil {
		return nil, errNoEmbeddedImage
	}
	return imaging.Decode(bytes.NewReader(thumb))
}

// orientation reads the EXIF orientation of the container (1 when absent).
// Embedded previews are stored unrotated; the container carries the tag.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
