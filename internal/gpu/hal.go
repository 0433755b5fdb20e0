//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Registers the Vulkan backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"openroom/internal/raster"
	"openroom/internal/recipe"
)

// Limits of a device opened with gputypes.DefaultLimits().
const (
	defaultMaxTextureDimension = 8192
	defaultMaxStorageBinding   = 128 << 20
)

const submitTimeout = 10 * time.Second

type bufferKind int

const (
	uniformBuffer bufferKind = iota
	storageBuffer
)

// AdapterInfo describes one enumerated GPU adapter.
type AdapterInfo struct {
	Name       string `json:"name"`
	Backend    string `json:"backend"`
	DeviceType string `json:"deviceType"`
}

type pipeline struct {
	label      string
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	compute    hal.ComputePipeline
	bindings   []bufferKind
}

type halDevice struct {
	name     string
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	resize *pipeline
	grade  *pipeline
}

// OpenHAL opens the preferred Vulkan adapter and builds the compute
// pipelines. It is the production Opener.
func OpenHAL() (Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("no GPU adapters found")
	}
	selected := preferredAdapter(adapters)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := &halDevice{
		name:     selected.Info.Name,
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
	}
	if d.resize, err = d.newPipeline("resize", resizeShader,
		uniformBuffer, storageBuffer, storageBuffer); err != nil {
		d.Close()
		return nil, err
	}
	if d.grade, err = d.newPipeline("grade", gradeShader,
		uniformBuffer, storageBuffer, uniformBuffer); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// EnumerateAdapters lists the adapters visible to the Vulkan backend without
// opening a device.
func EnumerateAdapters() ([]AdapterInfo, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	infos := make([]AdapterInfo, 0, len(adapters))
	for i := range adapters {
		infos = append(infos, AdapterInfo{
			Name:       adapters[i].Info.Name,
			Backend:    "vulkan",
			DeviceType: deviceTypeName(&adapters[i]),
		})
	}
	return infos, nil
}

func preferredAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return &adapters[i]
		}
	}
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return &adapters[i]
		}
	}
	return &adapters[0]
}

func deviceTypeName(a *hal.ExposedAdapter) string {
	switch a.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	default:
		return "other"
	}
}

func (d *halDevice) Name() string          { return d.name }
func (d *halDevice) MaxDimension() int     { return defaultMaxTextureDimension }
func (d *halDevice) MaxBufferBytes() int64 { return defaultMaxStorageBinding }

func (d *halDevice) newPipeline(label, source string, bindings ...bufferKind) (*pipeline, error) {
	p := &pipeline{label: label, bindings: bindings}

	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	p.shader = shader

	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(bindings))
	for i, kind := range bindings {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     bindingLayout(kind),
		})
	}
	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s bind group layout: %w", label, err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s pipeline layout: %w", label, err)
	}
	p.pipeLayout = pipeLayout

	compute, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: p.pipeLayout,
		Compute: hal.ComputeState{Module: p.shader, EntryPoint: "main"},
	})
	if err != nil {
		d.destroyPipeline(p)
		return nil, fmt.Errorf("create %s compute pipeline: %w", label, err)
	}
	p.compute = compute
	return p, nil
}

func bindingLayout(kind bufferKind) *gputypes.BufferBindingLayout {
	if kind == uniformBuffer {
		return &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	}
	return &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
}

func bufferDescriptor(label string, kind bufferKind, size uint64) *hal.BufferDescriptor {
	if kind == uniformBuffer {
		return &hal.BufferDescriptor{
			Label: label, Size: size,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		}
	}
	return &hal.BufferDescriptor{
		Label: label, Size: size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	}
}

func (d *halDevice) destroyPipeline(p *pipeline) {
	if p == nil || d.device == nil {
		return
	}
	if p.compute != nil {
		d.device.DestroyComputePipeline(p.compute)
	}
	if p.pipeLayout != nil {
		d.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		d.device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		d.device.DestroyShaderModule(p.shader)
	}
}

func (d *halDevice) Close() {
	d.destroyPipeline(d.resize)
	d.destroyPipeline(d.grade)
	d.resize, d.grade = nil, nil
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}

func (d *halDevice) Resize(src *raster.Image, width, height int) (*raster.Image, error) {
	dims := packDims(src.Width, src.Height, width, height)
	dstSize := uint64(width) * uint64(height) * 4

	out, err := d.dispatch(d.resize, []binding{
		{data: dims, size: uint64(len(dims))},
		{data: src.Pix, size: uint64(len(src.Pix))},
		{size: dstSize},
	}, 2, width, height)
	if err != nil {
		return nil, err
	}
	return &raster.Image{Width: width, Height: height, Pix: out}, nil
}

func (d *halDevice) Grade(src *raster.Image, params recipe.GlobalParams) (*raster.Image, error) {
	globals := params.Bytes()
	dims := packDims(src.Width, src.Height, 0, 0)

	out, err := d.dispatch(d.grade, []binding{
		{data: globals, size: uint64(len(globals))},
		{data: src.Pix, size: uint64(len(src.Pix))},
		{data: dims, size: uint64(len(dims))},
	}, 1, src.Width, src.Height)
	if err != nil {
		return nil, err
	}
	return &raster.Image{Width: src.Width, Height: src.Height, Pix: out}, nil
}

func packDims(a, b, c, e int) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:], uint32(a))
	binary.LittleEndian.PutUint32(buf[4:], uint32(b))
	binary.LittleEndian.PutUint32(buf[8:], uint32(c))
	binary.LittleEndian.PutUint32(buf[12:], uint32(e))
	return buf
}

// binding is the content of one bind group slot. A nil data leaves the
// buffer uninitialized.
type binding struct {
	data []byte
	size uint64
}

// dispatch uploads the bindings, runs one compute pass over a width x height
// grid and reads back the binding at index readback.
func (d *halDevice) dispatch(p *pipeline, bindings []binding, readback int, width, height int) ([]byte, error) {
	if len(bindings) != len(p.bindings) {
		return nil, fmt.Errorf("%s: %d bindings, pipeline expects %d", p.label, len(bindings), len(p.bindings))
	}

	buffers := make([]hal.Buffer, len(bindings))
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, b := range bindings {
		buf, err := d.device.CreateBuffer(bufferDescriptor(fmt.Sprintf("%s_%d", p.label, i), p.bindings[i], b.size))
		if err != nil {
			return nil, fmt.Errorf("create %s buffer %d: %w", p.label, i, err)
		}
		defer d.device.DestroyBuffer(buf)
		if b.data != nil {
			d.queue.WriteBuffer(buf, 0, b.data)
		}
		buffers[i] = buf
		entries[i] = gputypes.BindGroupEntry{
			Binding:  uint32(i),
			Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: b.size},
		}
	}

	outSize := bindings[readback].size
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.label + "_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	bindGroup, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: p.label + "_bind_group", Layout: p.bindLayout, Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(bindGroup)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: p.label + "_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(p.label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.label + "_pass"})
	pass.SetPipeline(p.compute)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(uint32(width+7)/8, uint32(height+7)/8, 1)
	pass.End()

	encoder.CopyBufferToBuffer(buffers[readback], staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	done, err := d.device.Wait(fence, 1, submitTimeout)
	if err != nil {
		return nil, fmt.Errorf("wait for GPU: %w", err)
	}
	if !done {
		return nil, fmt.Errorf("wait for GPU: timed out after %s", submitTimeout)
	}

	out := make([]byte, outSize)
	if err := d.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return out, nil
}
