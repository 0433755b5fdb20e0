package adjust

import (
	"github.com/anthonynsimon/bild/parallel"
	"github.com/chewxy/math32"

	"openroom/internal/raster"
	"openroom/internal/recipe"
)

// Rec. 709 luma weights.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

func luma(r, g, b float32) float32 {
	return lumaR*r + lumaG*g + lumaB*b
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float32) uint8 {
	return uint8(math32.Round(clamp01(v) * 255))
}

// whiteBalance scales red and blue against each other by temp and shifts
// green against magenta by tint.
func whiteBalance(r, g, b, temp, tint float32) (float32, float32, float32) {
	r *= 1 + temp*0.5 + tint*0.2
	b *= 1 - temp*0.5 + tint*0.2
	g *= 1 - tint*0.2
	return r, g, b
}

// GradePixel applies the global formula to one normalized color. The result
// is clamped to [0, 1]. gradeShader in package gpu computes the same thing.
func GradePixel(r, g, b float32, p recipe.GlobalParams) (float32, float32, float32) {
	r *= p.ExposureMul
	g *= p.ExposureMul
	b *= p.ExposureMul

	r, g, b = whiteBalance(r, g, b, p.Temp, p.Tint)

	l := luma(r, g, b)
	hi := math32.Max(l-0.5, 0) * 2
	sh := math32.Max(0.5-l, 0) * 2
	tone := func(c float32) float32 {
		c *= 1 + p.Highlights*hi
		c *= 1 + p.Shadows*sh
		c += p.Whites * 0.1
		c -= p.Blacks * 0.1
		return (c-0.5)*(1+p.Contrast) + 0.5
	}
	r, g, b = tone(r), tone(g), tone(b)

	l = luma(r, g, b)
	vibMask := clamp01(1 - (math32.Abs(r-l)+math32.Abs(g-l)+math32.Abs(b-l))/3)
	satFactor := 1 + p.Saturation
	vibFactor := 1 + p.Vibrance*vibMask
	r = l + (r-l)*satFactor*vibFactor
	g = l + (g-l)*satFactor*vibFactor
	b = l + (b-l)*satFactor*vibFactor

	return clamp01(r), clamp01(g), clamp01(b)
}

// ApplyGlobals grades img in place on the CPU. Alpha is left untouched.
func ApplyGlobals(img *raster.Image, p recipe.GlobalParams) {
	stride := img.Width * 4
	parallel.Line(img.Height, func(start, end int) {
		for i := start * stride; i < end*stride; i += 4 {
			px := img.Pix[i : i+4 : i+4]
			r, g, b := GradePixel(
				float32(px[0])/255,
				float32(px[1])/255,
				float32(px[2])/255,
				p,
			)
			px[0] = toByte(r)
			px[1] = toByte(g)
			px[2] = toByte(b)
		}
	})
}
