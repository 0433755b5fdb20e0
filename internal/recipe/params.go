package recipe

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// GlobalParams is the normalized parameter block consumed by both the CPU
// grading loop and the GPU shader. Field order and size (12 float32, 48
// bytes) match the shader's uniform struct.
type GlobalParams struct {
	ExposureMul float32
	Contrast    float32
	Highlights  float32
	Shadows     float32
	Whites      float32
	Blacks      float32
	Vibrance    float32
	Saturation  float32
	Temp        float32
	Tint        float32
	pad0        float32
	pad1        float32
}

// GlobalParamsSize is the byte length of the packed uniform.
const GlobalParamsSize = 48

// Params converts slider values into the normalized block: exposure becomes
// 2^ev, every other slider is divided by 100.
func (g GlobalAdjustments) Params() GlobalParams {
	return GlobalParams{
		ExposureMul: math32.Pow(2, g.ExposureEV),
		Contrast:    g.Contrast / 100,
		Highlights:  g.Highlights / 100,
		Shadows:     g.Shadows / 100,
		Whites:      g.Whites / 100,
		Blacks:      g.Blacks / 100,
		Vibrance:    g.Vibrance / 100,
		Saturation:  g.Saturation / 100,
		Temp:        g.Temp / 100,
		Tint:        g.Tint / 100,
	}
}

// Bytes packs the block little-endian for upload as a uniform buffer.
func (p GlobalParams) Bytes() []byte {
	out := make([]byte, GlobalParamsSize)
	for i, v := range []float32{
		p.ExposureMul, p.Contrast, p.Highlights, p.Shadows, p.Whites, p.Blacks,
		p.Vibrance, p.Saturation, p.Temp, p.Tint, p.pad0, p.pad1,
	} {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

// LocalParams is the normalized form of LocalAdjustments.
type LocalParams struct {
	ExposureMul float32
	Temp        float32
	Tint        float32
	Saturation  float32
}

// Params converts local slider values the same way as the global ones.
func (l LocalAdjustments) Params() LocalParams {
	return LocalParams{
		ExposureMul: math32.Pow(2, l.ExposureEV),
		Temp:        l.Temp / 100,
		Tint:        l.Tint / 100,
		Saturation:  l.Saturation / 100,
	}
}
