// Package startup loads the service configuration and writes the sectioned
// startup and shutdown log.
//
// # Configuration
//
// All configuration comes from environment variables via [LoadConfig]:
//
//   - LIBRARY_DIR: Root that request paths resolve against; empty accepts any absolute path (default: empty)
//   - CACHE_DIR: Cache root; thumbnails go to CACHE_DIR/thumbs (default: user cache dir + /openroom)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - GPU_ENABLED: Allow the GPU path; false forces CPU rendering (default: true)
//   - VIPS_ENABLED: Start libvips for the RAW backend (default: true)
//   - RENDER_WORKERS: Concurrent renders; 0 sizes from GOMAXPROCS (default: 0)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: false)
//
// The thumbnail directory is optional. When it cannot be created or written,
// thumbnails are still rendered but not persisted.
//
// # Build Information
//
// Version, Commit and BuildTime are injected with -ldflags and exposed via
// [GetBuildInfo].
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogDecoderInit(chain.Backends(), decode.IsVipsAvailable())
//	startup.LogGPUInit(gpuCtx)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
package startup
