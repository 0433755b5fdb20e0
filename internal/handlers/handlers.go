package handlers

import (
	"time"

	"openroom/internal/gpu"
	"openroom/internal/logging"
	"openroom/internal/preview"
	"openroom/internal/startup"
)

var log = logging.For("http")

type Handlers struct {
	previews   *preview.Service
	gpu        *gpu.Context
	adapters   func() ([]gpu.AdapterInfo, error)
	libraryDir string
	started    time.Time
}

func New(previews *preview.Service, gpuCtx *gpu.Context, config *startup.Config) *Handlers {
	return &Handlers{
		previews:   previews,
		gpu:        gpuCtx,
		adapters:   gpu.EnumerateAdapters,
		libraryDir: config.LibraryDir,
		started:    time.Now(),
	}
}
