package decode

import (
	"bytes"
	"fmt"

	// Extra codecs registered with image.Decode for content sniffing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"openroom/internal/raster"
)

type imagingBackend struct{}

// ImagingBackend decodes standard formats by opening the path directly.
func ImagingBackend() Backend { return imagingBackend{} }

func (imagingBackend) Name() string { return "imaging" }

func (imagingBackend) Decode(src *Source) (*raster.Image, error) {
	img, err := imaging.Open(src.Path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return raster.FromImage(img), nil
}

type memoryBackend struct{}

// MemoryBackend decodes standard formats from the file's bytes, identifying
// the codec by content. It rescues files whose extension is wrong or has
// unexpected case.
func MemoryBackend() Backend { return memoryBackend{} }

func (memoryBackend) Name() string { return "memory" }

func (memoryBackend) Decode(src *Source) (*raster.Image, error) {
	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%s content: %w", Sniff(head(data)), err)
	}
	return raster.FromImage(img), nil
}

func head(data []byte) []byte {
	if len(data) > 32 {
		return data[:32]
	}
	return data
}
