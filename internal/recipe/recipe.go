// Package recipe defines the non-destructive edit recipe applied to a decoded
// image: global slider adjustments plus a stack of gradient-masked local
// layers. The JSON form uses camelCase keys and fills absent fields with
// defaults, so sidecars written by older versions keep loading.
package recipe

import (
	"encoding/json"

	"github.com/chewxy/math32"
)

// CurrentVersion is written into new recipes.
const CurrentVersion = 1

// MaskLinearGradient is the only mask type.
const MaskLinearGradient = "linear_gradient"

// identityEpsilon is the magnitude below which a slider counts as untouched.
const identityEpsilon = 1e-4

// Point is a normalized image coordinate, serialized as [x, y].
type Point [2]float32

// X returns the horizontal component.
func (p Point) X() float32 { return p[0] }

// Y returns the vertical component.
func (p Point) Y() float32 { return p[1] }

// GlobalAdjustments are the whole-image sliders. ExposureEV is in stops;
// every other slider is in [-100, 100].
type GlobalAdjustments struct {
	ExposureEV float32 `json:"exposureEv"`
	Contrast   float32 `json:"contrast"`
	Highlights float32 `json:"highlights"`
	Shadows    float32 `json:"shadows"`
	Whites     float32 `json:"whites"`
	Blacks     float32 `json:"blacks"`
	Temp       float32 `json:"temp"`
	Tint       float32 `json:"tint"`
	Vibrance   float32 `json:"vibrance"`
	Saturation float32 `json:"saturation"`
}

// LocalAdjustments are the reduced slider set a layer can apply.
type LocalAdjustments struct {
	ExposureEV float32 `json:"exposureEv"`
	Temp       float32 `json:"temp"`
	Tint       float32 `json:"tint"`
	Saturation float32 `json:"saturation"`
}

// Mask describes where a layer applies.
type Mask struct {
	Type    string  `json:"maskType"`
	Start   Point   `json:"start"`
	End     Point   `json:"end"`
	Feather float32 `json:"feather"`
	Invert  bool    `json:"invert"`
}

// AdjustmentLayer is a named, masked local adjustment.
type AdjustmentLayer struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Enabled     bool             `json:"enabled"`
	Opacity     float32          `json:"opacity"`
	Mask        Mask             `json:"mask"`
	Adjustments LocalAdjustments `json:"adjustments"`
}

// EditRecipe is the full edit applied to an asset.
type EditRecipe struct {
	Version int               `json:"version"`
	Globals GlobalAdjustments `json:"globals"`
	Layers  []AdjustmentLayer `json:"layers"`
}

// DefaultMask returns the mask a new layer starts with.
func DefaultMask() Mask {
	return Mask{
		Type:    MaskLinearGradient,
		Start:   Point{0.3, 0.2},
		End:     Point{0.7, 0.8},
		Feather: 0.2,
	}
}

// DefaultLayer returns a new enabled gradient layer with no adjustments.
func DefaultLayer() AdjustmentLayer {
	return AdjustmentLayer{
		Name:    "Gradient",
		Enabled: true,
		Opacity: 1,
		Mask:    DefaultMask(),
	}
}

// New returns an empty recipe at the current version.
func New() *EditRecipe {
	return &EditRecipe{Version: CurrentVersion, Layers: []AdjustmentLayer{}}
}

// UnmarshalJSON applies mask defaults for absent fields.
func (m *Mask) UnmarshalJSON(data []byte) error {
	type plain Mask
	p := plain(DefaultMask())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Mask(p)
	return nil
}

// UnmarshalJSON applies layer defaults for absent fields.
func (l *AdjustmentLayer) UnmarshalJSON(data []byte) error {
	type plain AdjustmentLayer
	p := plain(DefaultLayer())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = AdjustmentLayer(p)
	return nil
}

// UnmarshalJSON applies recipe defaults for absent fields.
func (r *EditRecipe) UnmarshalJSON(data []byte) error {
	type plain EditRecipe
	p := plain(*New())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = EditRecipe(p)
	return nil
}

// IsIdentity reports whether every global slider is effectively zero.
func (g GlobalAdjustments) IsIdentity() bool {
	for _, v := range []float32{
		g.ExposureEV, g.Contrast, g.Highlights, g.Shadows, g.Whites,
		g.Blacks, g.Temp, g.Tint, g.Vibrance, g.Saturation,
	} {
		if math32.Abs(v) >= identityEpsilon {
			return false
		}
	}
	return true
}

// Visible reports whether the layer would change any pixel's blend weight.
func (l AdjustmentLayer) Visible() bool {
	return l.Enabled && l.Opacity > 0
}

// HasVisibleLayers reports whether any layer is enabled with opacity > 0.
func (r *EditRecipe) HasVisibleLayers() bool {
	if r == nil {
		return false
	}
	for _, l := range r.Layers {
		if l.Visible() {
			return true
		}
	}
	return false
}

// IsIdentity reports whether applying r leaves every pixel unchanged.
// A nil recipe is the identity.
func (r *EditRecipe) IsIdentity() bool {
	return r == nil || (r.Globals.IsIdentity() && !r.HasVisibleLayers())
}
