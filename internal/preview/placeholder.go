package preview

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"openroom/internal/raster"
)

const (
	placeholderWidth  = 480
	placeholderHeight = 320
)

// Corner colors of the placeholder gradient.
var (
	placeholderTopLeft     = colorful.Color{R: 220.0 / 255, G: 230.0 / 255, B: 245.0 / 255}
	placeholderTopRight    = colorful.Color{R: 220.0 / 255, G: 170.0 / 255, B: 245.0 / 255}
	placeholderBottomLeft  = colorful.Color{R: 180.0 / 255, G: 230.0 / 255, B: 245.0 / 255}
	placeholderBottomRight = colorful.Color{R: 180.0 / 255, G: 170.0 / 255, B: 165.0 / 255}
)

// Placeholder returns the soft gradient shown for assets that cannot be
// decoded.
func Placeholder() *raster.Image {
	img := raster.New(placeholderWidth, placeholderHeight)
	for y := 0; y < placeholderHeight; y++ {
		v := float64(y) / placeholderHeight
		for x := 0; x < placeholderWidth; x++ {
			u := float64(x) / placeholderWidth
			top := placeholderTopLeft.BlendRgb(placeholderTopRight, u)
			bottom := placeholderBottomLeft.BlendRgb(placeholderBottomRight, u)
			r, g, b := top.BlendRgb(bottom, v).RGB255()
			img.Set(x, y, r, g, b, 255)
		}
	}
	return img
}
