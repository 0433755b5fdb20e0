package decode

import (
	"fmt"

	"github.com/anthonynsimon/bild/parallel"

	"openroom/internal/raster"
)

// CFA color indices.
const (
	ColorRed   = 0
	ColorGreen = 1
	ColorBlue  = 2
)

// CFA is a color filter array pattern repeated over the sensor.
// Colors is row-major with Width*Height entries.
type CFA struct {
	Width  int
	Height int
	Colors []int
}

// RGGB is the most common Bayer layout and the default when a file does not
// declare one.
var RGGB = CFA{Width: 2, Height: 2, Colors: []int{ColorRed, ColorGreen, ColorGreen, ColorBlue}}

// ColorAt returns the color sampled at (x, y). Indices other than red, green
// and blue (e.g. a fourth "emerald" filter) are reported as green.
func (c CFA) ColorAt(x, y int) int {
	if c.Width <= 0 || c.Height <= 0 || len(c.Colors) < c.Width*c.Height {
		return ColorGreen
	}
	switch col := c.Colors[(y%c.Height)*c.Width+x%c.Width]; col {
	case ColorRed, ColorBlue:
		return col
	default:
		return ColorGreen
	}
}

// RawImage is undemosaiced sensor data. CPP is 1 for a CFA mosaic and 3 for
// data that is already RGB. Black and White hold per-channel levels in R, G,
// B order; missing entries default to 0 and 65535.
type RawImage struct {
	Width  int
	Height int
	CPP    int
	Data   []float32
	CFA    CFA
	Black  []float32
	White  []float32
}

func (r *RawImage) levels() (black, white [3]float32) {
	for i := 0; i < 3; i++ {
		black[i] = 0
		white[i] = 65535
		if i < len(r.Black) {
			black[i] = r.Black[i]
		}
		if i < len(r.White) {
			white[i] = r.White[i]
		}
	}
	return black, white
}

// normalizeSample maps a raw value to [0, 1] between its black and white
// levels. A degenerate range yields 0.
func normalizeSample(v, black, white float32) float32 {
	if white <= black {
		return 0
	}
	return clamp01((v - black) / (white - black))
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

// toByte truncates a [0, 1] value to 0..255.
func toByte(v float32) uint8 {
	return uint8(clamp01(v) * 255)
}

// Demosaic converts raw sensor data to RGBA. Mosaic data is split into
// per-channel planes; every pixel missing a channel takes the average of the
// sampled 3x3 neighbours of that channel, or keeps 0 when none are sampled.
func Demosaic(raw *RawImage) (*raster.Image, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, fmt.Errorf("invalid raw dimensions %dx%d", raw.Width, raw.Height)
	}
	if raw.CPP != 1 && raw.CPP != 3 {
		return nil, fmt.Errorf("%w: %d components per pixel", errUnsupportedLayout, raw.CPP)
	}
	n := raw.Width * raw.Height
	if len(raw.Data) < n*raw.CPP {
		return nil, &BufferShapeError{Len: len(raw.Data), Width: raw.Width, Height: raw.Height}
	}

	black, white := raw.levels()
	out := raster.New(raw.Width, raw.Height)

	if raw.CPP == 3 {
		parallel.Line(raw.Height, func(start, end int) {
			for i := start * raw.Width; i < end*raw.Width; i++ {
				s := raw.Data[3*i : 3*i+3]
				d := out.Pix[4*i : 4*i+4]
				d[0] = toByte(normalizeSample(s[0], black[0], white[0]))
				d[1] = toByte(normalizeSample(s[1], black[1], white[1]))
				d[2] = toByte(normalizeSample(s[2], black[2], white[2]))
				d[3] = 0xff
			}
		})
		return out, nil
	}

	var planes [3][]float32
	var sampled [3][]bool
	for c := range planes {
		planes[c] = make([]float32, n)
		sampled[c] = make([]bool, n)
	}

	w, h := raw.Width, raw.Height
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				c := raw.CFA.ColorAt(x, y)
				planes[c][i] = normalizeSample(raw.Data[i], black[c], white[c])
				sampled[c][i] = true
			}
		}
	})

	var filled [3][]float32
	for c := range planes {
		filled[c] = fillChannel(planes[c], sampled[c], w, h)
	}

	parallel.Line(h, func(start, end int) {
		for i := start * w; i < end*w; i++ {
			d := out.Pix[4*i : 4*i+4]
			d[0] = toByte(filled[0][i])
			d[1] = toByte(filled[1][i])
			d[2] = toByte(filled[2][i])
			d[3] = 0xff
		}
	})
	return out, nil
}

// fillChannel returns a copy of plane where every unsampled pixel is the
// mean of the sampled pixels in its 3x3 neighbourhood.
func fillChannel(plane []float32, sampled []bool, w, h int) []float32 {
	out := make([]float32, len(plane))
	copy(out, plane)

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if sampled[i] {
					continue
				}
				var sum, count float32
				for ny := y - 1; ny <= y+1; ny++ {
					if ny < 0 || ny >= h {
						continue
					}
					for nx := x - 1; nx <= x+1; nx++ {
						if nx < 0 || nx >= w {
							continue
						}
						if j := ny*w + nx; sampled[j] {
							sum += plane[j]
							count++
						}
					}
				}
				if count > 0 {
					out[i] = sum / count
				}
			}
		}
	})
	return out
}
