package handlers

import (
	"net/http"
	"runtime"
	"time"

	"openroom/internal/preview"
	"openroom/internal/startup"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Render state
	GPUState        string `json:"gpuState"`
	ResidentMasters int    `json:"residentMasters"`
	Variants        int    `json:"variants"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. Rendering always has
// the CPU path, so a failed GPU does not make the service unhealthy.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method == http.MethodHead {
		return
	}

	stats := h.previews.GetStats()
	writeJSON(w, HealthResponse{
		Status:          "healthy",
		Version:         startup.Version,
		Uptime:          time.Since(h.started).Round(time.Second).String(),
		GPUState:        h.gpu.State().String(),
		ResidentMasters: stats.ResidentMasters,
		Variants:        stats.Variants,
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
	})
}

// VersionResponse is the build plus the render limits clients size their
// requests against.
type VersionResponse struct {
	startup.BuildInfo

	PreviewMin       int    `json:"previewMin"`
	PreviewMax       int    `json:"previewMax"`
	PreviewDefault   int    `json:"previewDefault"`
	ThumbnailSize    int    `json:"thumbnailSize"`
	ResidentCapacity int    `json:"residentCapacity"`
	GPUState         string `json:"gpuState"`
}

// GetVersion returns build information and render limits.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo:        startup.GetBuildInfo(),
		PreviewMin:       preview.MinDimension,
		PreviewMax:       preview.MaxDimension,
		PreviewDefault:   preview.DefaultPreviewDimension,
		ThumbnailSize:    preview.ThumbnailDimension,
		ResidentCapacity: preview.Capacity,
		GPUState:         h.gpu.State().String(),
	})
}
