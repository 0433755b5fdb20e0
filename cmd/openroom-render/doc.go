// Command openroom-render renders a single image file to PNG from the
// command line, using the same decode chain, edit pipeline and encoder as
// the openroom service.
//
// Usage:
//
//	openroom-render <command> [flags] <image>
//
// Commands:
//
//	render     Render a preview. -recipe applies an edit recipe (JSON),
//	           -max sets the longer side (480-3200, default 1440).
//
//	thumbnail  Render a 360px thumbnail. Files that cannot be decoded
//	           produce the placeholder gradient.
//
//	gpus       List GPU adapters and whether the GPU path initializes.
//
// Common flags:
//
//	-o FILE    Write the PNG to FILE instead of stdout
//	-cpu       Skip the GPU and render on the CPU
//	-v         Verbose logging
//
// PNG output is never written to a terminal; redirect stdout or use -o.
//
// Environment:
//
//	VIPS_ENABLED - Start libvips for RAW decoding (default: true)
package main
