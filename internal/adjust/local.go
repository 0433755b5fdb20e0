package adjust

import (
	"github.com/anthonynsimon/bild/parallel"
	"github.com/chewxy/math32"

	"openroom/internal/raster"
	"openroom/internal/recipe"
)

const (
	minFeather  = 0.001
	minLengthSq = 1e-6
	maskEpsilon = 1e-4
)

// gradient is a Mask prepared for per-pixel evaluation.
type gradient struct {
	sx, sy float32
	dx, dy float32
	lenSq  float32
	edge0  float32
	edge1  float32
	invert bool
}

func newGradient(m recipe.Mask) gradient {
	feather := math32.Max(m.Feather, minFeather)
	dx := m.End.X() - m.Start.X()
	dy := m.End.Y() - m.Start.Y()
	return gradient{
		sx:     m.Start.X(),
		sy:     m.Start.Y(),
		dx:     dx,
		dy:     dy,
		lenSq:  math32.Max(dx*dx+dy*dy, minLengthSq),
		edge0:  0.5 - feather*0.5,
		edge1:  0.5 + feather*0.5,
		invert: m.Invert,
	}
}

// at returns the mask weight at normalized coordinate (x, y).
func (g gradient) at(x, y float32) float32 {
	t := clamp01(((x-g.sx)*g.dx + (y-g.sy)*g.dy) / g.lenSq)
	m := clamp01((t - g.edge0) / (g.edge1 - g.edge0))
	m = m * m * (3 - 2*m)
	if g.invert {
		m = 1 - m
	}
	return m
}

// GradientMask evaluates m at normalized coordinate (x, y), before opacity.
func GradientMask(m recipe.Mask, x, y float32) float32 {
	return newGradient(m).at(x, y)
}

// LocalPixel applies a layer's reduced adjustment (exposure, white balance,
// saturation) to one normalized color.
func LocalPixel(r, g, b float32, p recipe.LocalParams) (float32, float32, float32) {
	r *= p.ExposureMul
	g *= p.ExposureMul
	b *= p.ExposureMul

	r, g, b = whiteBalance(r, g, b, p.Temp, p.Tint)

	l := luma(r, g, b)
	sat := 1 + p.Saturation
	r = l + (r-l)*sat
	g = l + (g-l)*sat
	b = l + (b-l)*sat

	return clamp01(r), clamp01(g), clamp01(b)
}

// ApplyLayer blends one layer into img in place. Hidden layers are a no-op.
func ApplyLayer(img *raster.Image, layer recipe.AdjustmentLayer) {
	if !layer.Visible() || img.Width == 0 || img.Height == 0 {
		return
	}
	grad := newGradient(layer.Mask)
	params := layer.Adjustments.Params()
	opacity := layer.Opacity
	w, h := float32(img.Width), float32(img.Height)

	parallel.Line(img.Height, func(start, end int) {
		for py := start; py < end; py++ {
			y := float32(py) / h
			row := img.Pix[py*img.Width*4 : (py+1)*img.Width*4]
			for px := 0; px < img.Width; px++ {
				mask := grad.at(float32(px)/w, y) * opacity
				if mask <= maskEpsilon {
					continue
				}
				c := row[px*4 : px*4+3 : px*4+3]
				or := float32(c[0]) / 255
				og := float32(c[1]) / 255
				ob := float32(c[2]) / 255
				ar, ag, ab := LocalPixel(or, og, ob, params)
				c[0] = blend(or, ar, mask)
				c[1] = blend(og, ag, mask)
				c[2] = blend(ob, ab, mask)
			}
		}
	})
}

func blend(orig, adjusted, mask float32) uint8 {
	return uint8(math32.Round((orig*(1-mask) + adjusted*mask) * 255))
}

// ApplyLayers applies layers in order, each over the previous result.
func ApplyLayers(img *raster.Image, layers []recipe.AdjustmentLayer) {
	for _, l := range layers {
		ApplyLayer(img, l)
	}
}
