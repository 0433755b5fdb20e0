package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rwcarlsen/goexif/tiff"

	"openroom/internal/raster"
)

// TIFF/DNG tag IDs used by the raw parser.
const (
	tagNewSubfileType      = 0x00FE
	tagImageWidth          = 0x0100
	tagImageLength         = 0x0101
	tagBitsPerSample       = 0x0102
	tagCompression         = 0x0103
	tagPhotometric         = 0x0106
	tagStripOffsets        = 0x0111
	tagSamplesPerPixel     = 0x0115
	tagStripByteCounts     = 0x0117
	tagSubIFDs             = 0x014A
	tagCFARepeatPatternDim = 0x828D
	tagCFAPattern          = 0x828E
	tagDNGVersion          = 0xC612
	tagBlackLevel          = 0xC61A
	tagWhiteLevel          = 0xC61D
)

const (
	photometricCFA       = 32803
	photometricLinearRaw = 34892
	compressionNone      = 1
)

// maxSubIFDs bounds how many SubIFD offsets are followed per directory.
const maxSubIFDs = 16

type rawBackend struct{}

// RawBackend parses uncompressed DNG files and demosaics them.
func RawBackend() Backend { return rawBackend{} }

func (rawBackend) Name() string { return "rawparse" }

func (rawBackend) Decode(src *Source) (*raster.Image, error) {
	data, err := src.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read image bytes: %w", err)
	}
	raw, err := parseRaw(data, false)
	if err != nil {
		if errors.Is(err, errUnsupportedLayout) {
			return nil, fmt.Errorf("%w; %s", err, dngHint)
		}
		return nil, err
	}
	return Demosaic(raw)
}

// ifd wraps a goexif directory with typed accessors.
type ifd struct {
	tags map[uint16]*tiff.Tag
}

func newIFD(d *tiff.Dir) ifd {
	m := make(map[uint16]*tiff.Tag, len(d.Tags))
	for _, t := range d.Tags {
		m[t.Id] = t
	}
	return ifd{tags: m}
}

func (d ifd) has(id uint16) bool {
	_, ok := d.tags[id]
	return ok
}

// ints returns every value of an integer-valued tag. BYTE, SHORT, LONG and
// UNDEFINED are all accepted.
func (d ifd) ints(id uint16) []int64 {
	t, ok := d.tags[id]
	if !ok {
		return nil
	}
	if t.Format() == tiff.UndefVal {
		out := make([]int64, len(t.Val))
		for i, b := range t.Val {
			out[i] = int64(b)
		}
		return out
	}
	if t.Format() != tiff.IntVal {
		return nil
	}
	out := make([]int64, 0, t.Count)
	for i := 0; i < int(t.Count); i++ {
		v, err := t.Int64(i)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

func (d ifd) int(id uint16, def int64) int64 {
	if v := d.ints(id); len(v) > 0 {
		return v[0]
	}
	return def
}

// levels reads BlackLevel/WhiteLevel, which DNG allows as integers or
// rationals.
func (d ifd) levels(id uint16) []float32 {
	t, ok := d.tags[id]
	if !ok {
		return nil
	}
	var out []float32
	for i := 0; i < int(t.Count); i++ {
		switch t.Format() {
		case tiff.IntVal:
			v, err := t.Int64(i)
			if err != nil {
				return out
			}
			out = append(out, float32(v))
		case tiff.RatVal:
			num, den, err := t.Rat2(i)
			if err != nil || den == 0 {
				return out
			}
			out = append(out, float32(num)/float32(den))
		case tiff.FloatVal:
			v, err := t.Float(i)
			if err != nil {
				return out
			}
			out = append(out, float32(v))
		default:
			return out
		}
	}
	return out
}

// parseRaw reads the full-resolution raw frame from a TIFF-structured file.
// Strict mode accepts only DNG CFA or LinearRaw frames. Lenient mode accepts
// any uncompressed 8/16-bit frame with one or three samples per pixel and
// assumes RGGB when no pattern is declared.
func parseRaw(data []byte, lenient bool) (*RawImage, error) {
	if k := Sniff(head(data)); k != KindTIFF {
		return nil, fmt.Errorf("%w: %s container", errUnsupportedLayout, k)
	}
	r := bytes.NewReader(data)
	t, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("parse tiff structure: %w", err)
	}
	if len(t.Dirs) == 0 {
		return nil, fmt.Errorf("%w: no image directories", errUnsupportedLayout)
	}

	root := newIFD(t.Dirs[0])
	if !lenient && !root.has(tagDNGVersion) {
		return nil, fmt.Errorf("%w: couldn't find camera support (not a DNG)", errUnsupportedLayout)
	}

	var best *ifd
	for _, d := range collectIFDs(r, t) {
		if !d.isRawFrame(lenient) {
			continue
		}
		if best == nil || d.int(tagImageWidth, 0)*d.int(tagImageLength, 0) > best.int(tagImageWidth, 0)*best.int(tagImageLength, 0) {
			best = &d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no uncompressed raw frame", errUnsupportedLayout)
	}
	return best.readFrame(data, t.Order)
}

// collectIFDs returns the main IFD chain followed by any SubIFDs.
func collectIFDs(r *bytes.Reader, t *tiff.Tiff) []ifd {
	var out []ifd
	for _, d := range t.Dirs {
		parent := newIFD(d)
		out = append(out, parent)

		offsets := parent.ints(tagSubIFDs)
		if len(offsets) > maxSubIFDs {
			offsets = offsets[:maxSubIFDs]
		}
		for _, off := range offsets {
			if _, err := r.Seek(off, io.SeekStart); err != nil {
				continue
			}
			sub, _, err := tiff.DecodeDir(r, t.Order)
			if err != nil {
				log.Debug("skipping unreadable SubIFD at %d: %v", off, err)
				continue
			}
			out = append(out, newIFD(sub))
		}
	}
	return out
}

func (d ifd) isRawFrame(lenient bool) bool {
	if d.int(tagNewSubfileType, 0) != 0 {
		return false
	}
	if d.int(tagCompression, compressionNone) != compressionNone {
		return false
	}
	switch d.int(tagBitsPerSample, 0) {
	case 8, 16:
	default:
		return false
	}
	spp := d.int(tagSamplesPerPixel, 1)
	photometric := d.int(tagPhotometric, -1)
	if lenient {
		return spp == 1 || spp == 3
	}
	return (photometric == photometricCFA && spp == 1) || (photometric == photometricLinearRaw && spp == 3)
}

func (d ifd) readFrame(data []byte, order binary.ByteOrder) (*RawImage, error) {
	w := int(d.int(tagImageWidth, 0))
	h := int(d.int(tagImageLength, 0))
	bps := int(d.int(tagBitsPerSample, 0))
	spp := int(d.int(tagSamplesPerPixel, 1))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", w, h)
	}

	offsets := d.ints(tagStripOffsets)
	counts := d.ints(tagStripByteCounts)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: missing strip layout", errUnsupportedLayout)
	}

	var pix []byte
	for i, off := range offsets {
		end := off + counts[i]
		if off < 0 || end > int64(len(data)) || end < off {
			return nil, fmt.Errorf("strip %d out of bounds", i)
		}
		pix = append(pix, data[off:end]...)
	}

	n := w * h * spp
	bytesPer := bps / 8
	if len(pix) < n*bytesPer {
		return nil, &BufferShapeError{Len: len(pix) / bytesPer, Width: w, Height: h}
	}

	samples := make([]float32, n)
	for i := range samples {
		if bytesPer == 2 {
			samples[i] = float32(order.Uint16(pix[2*i:]))
		} else {
			samples[i] = float32(pix[i])
		}
	}

	raw := &RawImage{
		Width:  w,
		Height: h,
		CPP:    spp,
		Data:   samples,
		CFA:    d.cfa(),
		Black:  d.levels(tagBlackLevel),
		White:  d.levels(tagWhiteLevel),
	}
	raw.Black = perChannel(raw.Black, 0)
	raw.White = perChannel(raw.White, float32(int(1)<<bps-1))
	return raw, nil
}

// cfa reads the repeat pattern, defaulting to RGGB.
func (d ifd) cfa() CFA {
	dim := d.ints(tagCFARepeatPatternDim)
	pattern := d.ints(tagCFAPattern)
	if len(dim) != 2 || dim[0] <= 0 || dim[1] <= 0 || int64(len(pattern)) < dim[0]*dim[1] {
		return RGGB
	}
	rows, cols := int(dim[0]), int(dim[1])
	colors := make([]int, rows*cols)
	for i := range colors {
		colors[i] = int(pattern[i])
	}
	return CFA{Width: cols, Height: rows, Colors: colors}
}

// perChannel expands a level list to three channels. A single value applies
// to all channels; an absent list uses def.
func perChannel(levels []float32, def float32) []float32 {
	switch len(levels) {
	case 0:
		return []float32{def, def, def}
	case 1:
		return []float32{levels[0], levels[0], levels[0]}
	case 2:
		return []float32{levels[0], levels[1], levels[1]}
	default:
		return levels[:3]
	}
}
