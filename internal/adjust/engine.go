package adjust

import (
	"openroom/internal/gpu"
	"openroom/internal/logging"
	"openroom/internal/raster"
	"openroom/internal/recipe"
)

var log = logging.For("adjust")

// Engine applies recipes. A nil GPU context means CPU only.
type Engine struct {
	gpu *gpu.Context
}

// New returns an Engine that grades globals on ctx when it can.
func New(ctx *gpu.Context) *Engine {
	return &Engine{gpu: ctx}
}

// Grading names where a recipe's global adjustments ran.
type Grading string

const (
	GradingNone Grading = "none"
	GradingGPU  Grading = "gpu"
	GradingCPU  Grading = "cpu"
)

// Apply returns img with rec applied. img is never modified; when rec has
// no visible effect img itself is returned.
func (e *Engine) Apply(img *raster.Image, rec *recipe.EditRecipe) *raster.Image {
	out, _ := e.Render(img, rec)
	return out
}

// Render is Apply that also reports where the globals were graded. Local
// layers always run on the CPU and do not affect the result.
func (e *Engine) Render(img *raster.Image, rec *recipe.EditRecipe) (*raster.Image, Grading) {
	if rec.IsIdentity() {
		return img, GradingNone
	}

	out, grading := img, GradingNone
	if !rec.Globals.IsIdentity() {
		out, grading = e.grade(img, rec.Globals.Params())
	} else {
		out = img.Clone()
	}

	if rec.HasVisibleLayers() {
		ApplyLayers(out, rec.Layers)
	}
	return out, grading
}

func (e *Engine) grade(img *raster.Image, p recipe.GlobalParams) (*raster.Image, Grading) {
	if e != nil && e.gpu != nil {
		out, err := e.gpu.Grade(img, p)
		if err == nil {
			return out, GradingGPU
		}
		log.Debug("GPU grade unavailable for %dx%d, using CPU: %v", img.Width, img.Height, err)
	}
	out := img.Clone()
	ApplyGlobals(out, p)
	return out, GradingCPU
}
