package decode

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

const (
	tiffByte  = 1
	tiffShort = 3
	tiffLong  = 4
)

type tiffEntry struct {
	tag    uint16
	typ    uint16
	values []uint32
}

// buildTIFF writes a little-endian single-IFD TIFF. Every entry must fit in
// the 4-byte inline value field. The strip offset entry is filled in.
func buildTIFF(entries []tiffEntry, pixels []byte) []byte {
	entries = append(entries,
		tiffEntry{tagStripOffsets, tiffLong, []uint32{0}},
		tiffEntry{tagStripByteCounts, tiffLong, []uint32{uint32(len(pixels))}},
	)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	pixelOffset := uint32(8 + 2 + 12*len(entries) + 4)
	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("II")
	_ = binary.Write(&buf, le, uint16(42))
	_ = binary.Write(&buf, le, uint32(8))
	_ = binary.Write(&buf, le, uint16(len(entries)))

	for _, e := range entries {
		if e.tag == tagStripOffsets {
			e.values = []uint32{pixelOffset}
		}
		_ = binary.Write(&buf, le, e.tag)
		_ = binary.Write(&buf, le, e.typ)
		_ = binary.Write(&buf, le, uint32(len(e.values)))

		var inline [4]byte
		for i, v := range e.values {
			switch e.typ {
			case tiffByte:
				inline[i] = byte(v)
			case tiffShort:
				le.PutUint16(inline[2*i:], uint16(v))
			case tiffLong:
				le.PutUint32(inline[:], v)
			}
		}
		buf.Write(inline[:])
	}
	_ = binary.Write(&buf, le, uint32(0))
	buf.Write(pixels)
	return buf.Bytes()
}

type dngOptions struct {
	width, height int
	samples       []uint16
	pattern       []uint32 // 2x2 CFA colors
	black, white  uint32
	compression   uint32
	photometric   uint32
	noDNGVersion  bool
}

// buildDNG writes a minimal uncompressed 16-bit CFA DNG.
func buildDNG(o dngOptions) []byte {
	if o.compression == 0 {
		o.compression = compressionNone
	}
	if o.photometric == 0 {
		o.photometric = photometricCFA
	}
	if o.pattern == nil {
		o.pattern = []uint32{0, 1, 1, 2}
	}
	entries := []tiffEntry{
		{tagNewSubfileType, tiffLong, []uint32{0}},
		{tagImageWidth, tiffLong, []uint32{uint32(o.width)}},
		{tagImageLength, tiffLong, []uint32{uint32(o.height)}},
		{tagBitsPerSample, tiffShort, []uint32{16}},
		{tagCompression, tiffShort, []uint32{o.compression}},
		{tagPhotometric, tiffShort, []uint32{o.photometric}},
		{tagSamplesPerPixel, tiffShort, []uint32{1}},
		{tagCFARepeatPatternDim, tiffShort, []uint32{2, 2}},
		{tagCFAPattern, tiffByte, o.pattern},
		{tagBlackLevel, tiffLong, []uint32{o.black}},
		{tagWhiteLevel, tiffLong, []uint32{o.white}},
	}
	if !o.noDNGVersion {
		entries = append(entries, tiffEntry{tagDNGVersion, tiffByte, []uint32{1, 4, 0, 0}})
	}

	pixels := make([]byte, 2*len(o.samples))
	for i, v := range o.samples {
		binary.LittleEndian.PutUint16(pixels[2*i:], v)
	}
	return buildTIFF(entries, pixels)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func encodeTestImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 20), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}
