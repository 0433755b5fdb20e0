// Package resize produces aspect-preserving downsampled copies of raster
// images, on the GPU when possible and with a Catmull-Rom filter otherwise.
package resize

import (
	"errors"

	"github.com/disintegration/imaging"

	"openroom/internal/gpu"
	"openroom/internal/logging"
	"openroom/internal/raster"
)

var log = logging.For("resize")

// TargetSize returns the size of a width x height image scaled so that its
// longer side equals maxDim. Degenerate sources map to 1x1.
func TargetSize(width, height, maxDim int) (int, int) {
	if width <= 0 || height <= 0 || maxDim <= 0 {
		return 1, 1
	}
	if width >= height {
		return maxDim, scaled(height, width, maxDim)
	}
	return scaled(width, height, maxDim), maxDim
}

func scaled(short, long, maxDim int) int {
	n := int(float32(maxDim) / float32(long) * float32(short))
	if n < 1 {
		return 1
	}
	return n
}

// Resizer scales images. A nil GPU context means CPU only.
type Resizer struct {
	gpu *gpu.Context
}

// New returns a Resizer that tries ctx before the CPU filter.
func New(ctx *gpu.Context) *Resizer {
	return &Resizer{gpu: ctx}
}

// Resize scales img to fit the targetW x targetH box: the longer source side
// becomes max(targetW, targetH). The result may be img itself when the size
// does not change; images are treated as immutable.
func (r *Resizer) Resize(img *raster.Image, targetW, targetH int) *raster.Image {
	maxDim := max(targetW, targetH)
	if img == nil || img.Width <= 0 || img.Height <= 0 || maxDim <= 0 {
		return raster.New(1, 1)
	}

	w, h := TargetSize(img.Width, img.Height, maxDim)
	if w == img.Width && h == img.Height {
		return img
	}

	if r != nil && r.gpu != nil {
		out, err := r.gpu.Resize(img, w, h)
		if err == nil {
			return out
		}
		if !errors.Is(err, gpu.ErrUnavailable) {
			log.Debug("GPU resize %dx%d -> %dx%d failed, using CPU: %v",
				img.Width, img.Height, w, h, err)
		}
	}
	return CPU(img, w, h)
}

// Fit scales img so its longer side is maxDim.
func (r *Resizer) Fit(img *raster.Image, maxDim int) *raster.Image {
	return r.Resize(img, maxDim, maxDim)
}

// Downscale is Fit without upscaling: images already within maxDim are
// returned unchanged.
func (r *Resizer) Downscale(img *raster.Image, maxDim int) *raster.Image {
	if img != nil && img.MaxDim() <= maxDim {
		return img
	}
	return r.Fit(img, maxDim)
}

// CPU resizes img to exactly width x height with a Catmull-Rom filter.
func CPU(img *raster.Image, width, height int) *raster.Image {
	return raster.FromNRGBA(imaging.Resize(img.NRGBA(), width, height, imaging.CatmullRom))
}
