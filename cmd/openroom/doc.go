// Package main provides the entry point for the openroom preview service.
//
// openroom renders previews and thumbnails for a photo editor: it decodes
// camera and standard image files through a fallback chain, keeps a small
// two-tier preview cache, applies edit recipes on the GPU when one is
// available and on the CPU otherwise, and returns PNG bytes over HTTP.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from MEMORY_LIMIT when present
//  2. Configuration Loading: Reads environment variables and prepares the cache directory
//  3. Decoder Initialization: Starts libvips (if enabled) and builds the decode chain
//  4. GPU Initialization: Opens the GPU device, or records why the CPU path is used
//  5. HTTP Server Setup: Configures routes and middleware, starts the metrics server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM and releases the GPU and libvips
//
// # HTTP Server
//
// The main server (default port 8080) serves:
//
//   - GET/POST /api/preview: render a preview, optionally with a JSON recipe body
//   - GET /api/thumbnail: the cached thumbnail for an asset
//   - POST /api/cache/reset: drop cached previews (on folder change)
//   - GET /api/gpus: GPU adapter diagnostics
//   - GET /api/version and GET /healthz
//
// The metrics server (default port 9090, optional) serves /metrics.
//
// # Environment Variables
//
// See package startup for the full list. The most common are LIBRARY_DIR,
// CACHE_DIR, PORT, GPU_ENABLED, VIPS_ENABLED and RENDER_WORKERS.
//
// # Build Requirements
//
// libvips is required through cgo. Build with -tags nogpu to leave out the
// GPU backend entirely.
package main
