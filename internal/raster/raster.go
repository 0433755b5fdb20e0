// Package raster holds the in-memory pixel buffer shared by every stage of
// the image pipeline: 8-bit RGBA, row-major, straight (non-premultiplied)
// alpha, stride exactly 4*Width.
package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Image is an 8-bit RGBA buffer. Pipeline stages never mutate an Image they
// did not allocate; they Clone first.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed (transparent black) image.
func New(width, height int) *Image {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("raster: negative size %dx%d", width, height))
	}
	return &Image{Width: width, Height: height, Pix: make([]uint8, 4*width*height)}
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Pix: pix}
}

// MaxDim returns the larger side.
func (m *Image) MaxDim() int {
	if m.Width > m.Height {
		return m.Width
	}
	return m.Height
}

// Pixels returns Width*Height.
func (m *Image) Pixels() int {
	return m.Width * m.Height
}

// Offset returns the index of the pixel's red byte.
func (m *Image) Offset(x, y int) int {
	return 4 * (y*m.Width + x)
}

// At returns the RGBA bytes at (x, y).
func (m *Image) At(x, y int) (r, g, b, a uint8) {
	i := m.Offset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]
}

// Set writes the RGBA bytes at (x, y).
func (m *Image) Set(x, y int, r, g, b, a uint8) {
	i := m.Offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = r, g, b, a
}

// NRGBA views the buffer as an *image.NRGBA without copying.
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    m.Pix,
		Stride: 4 * m.Width,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// FromImage converts any decoded image into a raster.Image. 16-bit sources
// keep the high byte of every channel. The result never aliases img.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < out.Height; y++ {
			start := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*4*out.Width:(y+1)*4*out.Width], src.Pix[start:start+4*out.Width])
		}
	case *image.NRGBA64:
		for y := 0; y < out.Height; y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < out.Width; x++ {
				s := row + 8*x
				d := out.Offset(x, y)
				// big-endian samples: the high byte comes first
				out.Pix[d] = src.Pix[s]
				out.Pix[d+1] = src.Pix[s+2]
				out.Pix[d+2] = src.Pix[s+4]
				out.Pix[d+3] = src.Pix[s+6]
			}
		}
	case *image.Gray:
		for y := 0; y < out.Height; y++ {
			row := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < out.Width; x++ {
				v := src.Pix[row+x]
				out.Set(x, y, v, v, v, 0xff)
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				out.Set(x, y, uint8(c.R>>8), uint8(c.G>>8), uint8(c.B>>8), uint8(c.A>>8))
			}
		}
	}
	return out
}

// FromNRGBA adopts the pixel slice of an *image.NRGBA produced by a resampler
// when its layout already matches, and copies otherwise.
func FromNRGBA(img *image.NRGBA) *Image {
	b := img.Bounds()
	if b.Min == (image.Point{}) && img.Stride == 4*b.Dx() && len(img.Pix) == 4*b.Dx()*b.Dy() {
		return &Image{Width: b.Dx(), Height: b.Dy(), Pix: img.Pix}
	}
	return FromImage(img)
}
