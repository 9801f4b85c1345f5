//go:build !nogpu

package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gblur/gpucore"
)

//go:embed shaders/blur.wgsl
var blurShaderWGSL string

// entryPoints maps program names to WGSL entry points.
var entryPoints = map[string]string{
	gpucore.ProgramBlurHorizontal: "blur_horizontal",
	gpucore.ProgramBlurVertical:   "blur_vertical",
}

// paramsSize is sizeof(Params) in blur.wgsl.
const paramsSize = 16

type program struct {
	name          string
	workgroupSize [2]uint32

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (p *program) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
	}
}

// shaderSource returns the blur shader specialized for a work-group size.
func shaderSource(wg [2]uint32) string {
	return strings.NewReplacer(
		"WG_X", strconv.FormatUint(uint64(wg[0]), 10),
		"WG_Y", strconv.FormatUint(uint64(wg[1]), 10),
	).Replace(blurShaderWGSL)
}

// compileSPIRV compiles WGSL to SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// CompileProgram compiles one of the blur programs into a compute pipeline.
func (d *Device) CompileProgram(desc *gpucore.ProgramDesc) (gpucore.ProgramID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil program descriptor", gpucore.ErrInvalidDescriptor)
	}
	entry, ok := entryPoints[desc.Name]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, desc.Name)
	}
	wg := desc.WorkgroupSize
	lim := d.limits
	if wg[0] == 0 || wg[1] == 0 ||
		wg[0] > lim.MaxWorkgroupSize[0] || wg[1] > lim.MaxWorkgroupSize[1] ||
		uint64(wg[0])*uint64(wg[1]) > uint64(lim.MaxWorkgroupInvocations) {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: workgroup size %dx%d exceeds limits (max %v, %d invocations)",
			gpucore.ErrCompile, desc.Name, wg[0], wg[1], lim.MaxWorkgroupSize, lim.MaxWorkgroupInvocations)
	}

	spirv, err := compileSPIRV(shaderSource(wg))
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: %w", gpucore.ErrCompile, desc.Name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	p := &program{name: desc.Name, workgroupSize: wg}
	if err := d.createPipeline(p, desc.Label, entry, spirv); err != nil {
		p.destroy(d.device)
		return gpucore.InvalidID, fmt.Errorf("%w: %s: %w", gpucore.ErrCompile, desc.Name, err)
	}
	id := gpucore.ProgramID(d.newID())
	d.programs[id] = p

	slogger().Debug("wgpu: program compiled",
		slog.String("name", desc.Name),
		slog.String("entry", entry),
		slog.Any("workgroup_size", wg),
		slog.Int("spirv_words", len(spirv)))
	return id, nil
}

// createPipeline builds the shader module, layouts and pipeline of p.
// Caller holds d.mu.
func (d *Device) createPipeline(p *program, label, entry string, spirv []uint32) error {
	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	p.shader = shader

	bindLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + " bind layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: paramsSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + " pipeline layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: entry},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	p.pipeline = pipeline
	return nil
}

// DestroyProgram releases a compiled program.
func (d *Device) DestroyProgram(id gpucore.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.programs[id]; ok {
		p.destroy(d.device)
		delete(d.programs, id)
	}
}
