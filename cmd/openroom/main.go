package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openroom/internal/adjust"
	"openroom/internal/decode"
	"openroom/internal/filesystem"
	"openroom/internal/gpu"
	"openroom/internal/handlers"
	"openroom/internal/logging"
	"openroom/internal/memory"
	"openroom/internal/metrics"
	"openroom/internal/middleware"
	"openroom/internal/preview"
	"openroom/internal/resize"
	"openroom/internal/startup"
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Decoders
	if config.VipsEnabled {
		decode.InitVips()
	}
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	chain := decode.Default().WithObserver(metrics.NewDecodeObserver())
	startup.LogDecoderInit(chain.Backends(), decode.IsVipsAvailable())

	// GPU. Initialization happens here rather than on the first request so
	// the startup log shows which path renders will take.
	gpuCtx := newGPUContext(config)
	_ = gpuCtx.Init()
	startup.LogGPUInit(gpuCtx)

	monitor := memory.NewMonitor(memory.DefaultConfig())

	svc := preview.NewService(chain, resize.New(gpuCtx), adjust.New(gpuCtx), preview.Options{
		ThumbnailDir:     thumbnailDir(config),
		PreviewWorkers:   config.PreviewWorkers(),
		ThumbnailWorkers: config.ThumbnailWorkers(),
		GPU:              gpuCtx,
		Memory:           monitor,
	})

	monitor.OnCritical(svc.Cache().TrimVariants)
	monitor.Start()

	collector := metrics.NewCollector(svc, 15*time.Second)
	collector.Start()

	h := handlers.New(svc, gpuCtx, config)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           middleware.Logger(loggingConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, collector, monitor, gpuCtx)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func newGPUContext(config *startup.Config) *gpu.Context {
	if !config.GPUEnabled {
		return gpu.Disabled("GPU_ENABLED=false")
	}
	return gpu.NewContext(gpu.OpenHAL)
}

// thumbnailDir returns "" when thumbnails cannot be persisted, which makes
// the service render them on every request instead.
func thumbnailDir(config *startup.Config) string {
	if !config.ThumbnailsPersisted {
		return ""
	}
	return config.ThumbnailDir
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET", "HEAD")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/preview", h.GetPreview).Methods("GET", "POST")
	api.HandleFunc("/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/cache/reset", h.ResetCache).Methods("POST")
	api.HandleFunc("/gpus", h.GetGPUs).Methods("GET")
	api.HandleFunc("/version", h.GetVersion).Methods("GET")

	return r
}

func startMetricsServer(port string) *http.Server {
	metrics.InitializeMetrics()
	metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor, gpuCtx *gpu.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Releasing GPU")
	gpuCtx.Close()
	startup.LogShutdownStepComplete("GPU released")

	startup.LogShutdownStep("Shutting down libvips")
	decode.ShutdownVips()
	startup.LogShutdownStepComplete("libvips shut down")

	startup.LogShutdownComplete()
}
