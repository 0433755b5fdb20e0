// Package decode turns a file on disk into an 8-bit RGBA raster.
//
// Decoding runs an ordered fallback chain and returns the first success:
//
//  1. imaging: standard codecs opened by path (JPEG, PNG, GIF, TIFF, BMP, WebP)
//  2. memory: the same codecs over the file's bytes, sniffed by content
//     rather than extension
//  3. libvips: RAW processing through libvips, 16-bit output first, then 8-bit
//  4. rawparse: a minimal DNG reader followed by a bilinear-style demosaic
//  5. dummy: a lenient TIFF-structured RAW read, then the largest embedded
//     JPEG preview
//
// When every backend fails the caller gets a *DecodeError carrying one reason
// per backend. Individual attempts are reported to an Observer so they can
// be counted without this package depending on a metrics library.
package decode
