// Package adjust applies an edit recipe to a raster image.
//
// Global adjustments run on the GPU grade pipeline when it is available and
// fall back to a row-parallel CPU loop computing the same formula in float32.
// Local gradient layers always run on the CPU, in list order, each blending
// over the output of the previous one.
package adjust
