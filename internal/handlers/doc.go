// Package handlers provides the HTTP handlers for the openroom service.
//
// It includes handlers for:
//   - Preview rendering with an optional edit recipe
//   - Thumbnails served from the on-disk cache
//   - Preview cache reset and GPU adapter diagnostics
//   - Health checks, version and Prometheus metrics
package handlers
