package raster

// FromInterleaved8 expands an interleaved 8-bit sample buffer with the given
// channel count into RGBA: 1 channel is gray, 2 is gray+alpha, 3 or more is
// RGB with the fourth channel (if any) as alpha. len(samples) must equal
// width*height*channels.
func FromInterleaved8(samples []uint8, width, height, channels int) *Image {
	out := New(width, height)
	n := width * height
	for i := 0; i < n; i++ {
		s := samples[i*channels : (i+1)*channels]
		d := out.Pix[4*i : 4*i+4]
		expand(d, s[0], at(s, 1), at(s, 2), at(s, 3), channels)
	}
	return out
}

// FromInterleaved16 is FromInterleaved8 for 16-bit samples; each sample
// keeps its high byte.
func FromInterleaved16(samples []uint16, width, height, channels int) *Image {
	out := New(width, height)
	n := width * height
	for i := 0; i < n; i++ {
		s := samples[i*channels : (i+1)*channels]
		d := out.Pix[4*i : 4*i+4]
		expand(d, hi(s[0]), hi(at16(s, 1)), hi(at16(s, 2)), hi(at16(s, 3)), channels)
	}
	return out
}

func expand(d []uint8, c0, c1, c2, c3 uint8, channels int) {
	switch {
	case channels == 1:
		d[0], d[1], d[2], d[3] = c0, c0, c0, 0xff
	case channels == 2:
		d[0], d[1], d[2], d[3] = c0, c0, c0, c1
	case channels == 3:
		d[0], d[1], d[2], d[3] = c0, c1, c2, 0xff
	default:
		d[0], d[1], d[2], d[3] = c0, c1, c2, c3
	}
}

func hi(v uint16) uint8 { return uint8(v >> 8) }

func at(s []uint8, i int) uint8 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func at16(s []uint16, i int) uint16 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
