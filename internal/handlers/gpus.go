package handlers

import (
	"net/http"

	"openroom/internal/gpu"
)

// GPUResponse describes the render device and the adapters on the host.
type GPUResponse struct {
	State        string            `json:"state"`
	Active       string            `json:"active,omitempty"`
	Error        string            `json:"error,omitempty"`
	Adapters     []gpu.AdapterInfo `json:"adapters"`
	AdapterError string            `json:"adapterError,omitempty"`
}

// GetGPUs lists the GPU adapters and the state of the render context.
// Enumeration failures are reported in the body; the CPU path still works.
func (h *Handlers) GetGPUs(w http.ResponseWriter, _ *http.Request) {
	response := GPUResponse{
		State:    h.gpu.State().String(),
		Active:   h.gpu.Adapter(),
		Adapters: []gpu.AdapterInfo{},
	}
	if err := h.gpu.Err(); err != nil {
		response.Error = err.Error()
	}

	adapters, err := h.adapters()
	if err != nil {
		log.Warn("failed to enumerate GPU adapters: %v", err)
		response.AdapterError = err.Error()
	} else if adapters != nil {
		response.Adapters = adapters
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}
