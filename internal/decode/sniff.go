package decode

import "bytes"

// Content kinds reported by Sniff.
const (
	KindJPEG    = "jpeg"
	KindPNG     = "png"
	KindGIF     = "gif"
	KindWebP    = "webp"
	KindBMP     = "bmp"
	KindTIFF    = "tiff"
	KindHEIF    = "heif"
	KindAVIF    = "avif"
	KindJXL     = "jxl"
	KindCR3     = "cr3"
	KindRAF     = "raf"
	KindORF     = "orf"
	KindRW2     = "rw2"
	KindUnknown = "unknown"
)

type signature struct {
	kind   string
	offset int
	magic  []byte
}

var signatures = []signature{
	{KindJPEG, 0, []byte{0xFF, 0xD8, 0xFF}},
	{KindPNG, 0, []byte{0x89, 'P', 'N', 'G'}},
	{KindGIF, 0, []byte("GIF8")},
	{KindBMP, 0, []byte("BM")},
	{KindRAF, 0, []byte("FUJIFILMCCD-RAW")},
	{KindORF, 0, []byte("IIRO")},
	{KindORF, 0, []byte("IIRS")},
	{KindRW2, 0, []byte{'I', 'I', 'U', 0x00}},
	// DNG, NEF, ARW, CR2 and PEF are all TIFF-structured.
	{KindTIFF, 0, []byte{'I', 'I', 0x2A, 0x00}},
	{KindTIFF, 0, []byte{'M', 'M', 0x00, 0x2A}},
	{KindJXL, 0, []byte{0xFF, 0x0A}},
	{KindJXL, 0, []byte{0x00, 0x00, 0x00, 0x0C, 'J', 'X', 'L', ' '}},
}

// Sniff classifies file content from its leading bytes. It never fails;
// unrecognised content is KindUnknown.
func Sniff(header []byte) string {
	if len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")) {
		return KindWebP
	}
	if len(header) >= 12 && bytes.Equal(header[4:8], []byte("ftyp")) {
		switch string(header[8:12]) {
		case "heic", "heix", "hevc", "hevx", "mif1", "msf1":
			return KindHEIF
		case "avif", "avis":
			return KindAVIF
		case "crx ":
			return KindCR3
		}
		return KindUnknown
	}
	for _, s := range signatures {
		end := s.offset + len(s.magic)
		if len(header) >= end && bytes.Equal(header[s.offset:end], s.magic) {
			return s.kind
		}
	}
	return KindUnknown
}
