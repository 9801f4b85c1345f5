//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gblur/gpucore"
)

// submission tracks the HAL objects of one submitted command buffer until
// its fence is waited on.
type submission struct {
	fence    gpucore.Fence
	halFence hal.Fence
	cmdBuf   hal.CommandBuffer

	bindGroups []hal.BindGroup
	uniforms   []hal.Buffer

	// err is set when the command buffer failed before reaching the GPU.
	err error
}

// step is a validated dispatch ready to encode.
type step struct {
	label  string
	prog   *program
	src    *texture
	dst    *texture
	wbuf   *buffer
	radius uint32
	groups [2]uint32
}

// Submit validates and encodes a command buffer and submits it to the
// queue. Validation errors, including hazards, are reported by Wait.
func (d *Device) Submit(cb *gpucore.CommandBuffer) (gpucore.Fence, error) {
	if cb == nil {
		return 0, fmt.Errorf("%w: nil command buffer", gpucore.ErrInvalidDescriptor)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, gpucore.ErrDeviceLost
	}

	d.issued++
	s := &submission{fence: d.issued}
	d.inflight[s.fence] = s

	steps, err := d.plan(cb)
	if err == nil {
		err = d.encode(s, cb.Label(), steps)
	}
	if err == nil {
		err = d.submitLocked(s)
	}
	if err != nil {
		s.err = err
		slogger().Warn("wgpu: submission failed",
			slog.Uint64("fence", uint64(s.fence)),
			slog.String("label", cb.Label()),
			slog.Any("err", err))
	}
	return s.fence, nil
}

// plan resolves every dispatch of cb and checks barriers. Caller holds d.mu.
func (d *Device) plan(cb *gpucore.CommandBuffer) ([]step, error) {
	// Textures written since the last barrier covering them.
	dirty := make(map[gpucore.TextureID]bool)
	var steps []step

	for i, cmd := range cb.Commands() {
		switch cmd.Kind {
		case gpucore.CommandBarrier:
			for _, id := range cmd.Textures {
				delete(dirty, id)
			}
		case gpucore.CommandDispatch:
			args := cmd.Dispatch.Args
			if dirty[args.Input] {
				return nil, fmt.Errorf("%w: %s: command %d (%s) reads texture %d",
					gpucore.ErrHazard, cb.Label(), i, cmd.Dispatch.Label, args.Input)
			}
			st, err := d.resolve(&cmd.Dispatch)
			if err != nil {
				return nil, fmt.Errorf("%s: command %d: %w", cb.Label(), i, err)
			}
			steps = append(steps, st)
			dirty[args.Output] = true
		default:
			return nil, fmt.Errorf("%w: command kind %s", gpucore.ErrInvalidDescriptor, cmd.Kind)
		}
	}
	return steps, nil
}

// resolve looks up and validates the resources of a dispatch.
func (d *Device) resolve(disp *gpucore.Dispatch) (step, error) {
	prog, ok := d.programs[disp.Program]
	if !ok {
		return step{}, fmt.Errorf("%w: program %d", gpucore.ErrInvalidResource, disp.Program)
	}
	src, ok := d.textures[disp.Args.Input]
	if !ok {
		return step{}, fmt.Errorf("%w: input texture %d", gpucore.ErrInvalidResource, disp.Args.Input)
	}
	dst, ok := d.textures[disp.Args.Output]
	if !ok {
		return step{}, fmt.Errorf("%w: output texture %d", gpucore.ErrInvalidResource, disp.Args.Output)
	}
	wbuf, ok := d.buffers[disp.Args.Weights]
	if !ok {
		return step{}, fmt.Errorf("%w: weights buffer %d", gpucore.ErrInvalidResource, disp.Args.Weights)
	}

	if disp.Args.Input == disp.Args.Output {
		return step{}, fmt.Errorf("%w: input and output are the same texture", gpucore.ErrInvalidDescriptor)
	}
	if src.usage&gpucore.TextureUsageStorageRead == 0 || dst.usage&gpucore.TextureUsageStorageWrite == 0 {
		return step{}, fmt.Errorf("%w: missing storage usage", gpucore.ErrInvalidDescriptor)
	}
	if src.info != dst.info {
		return step{}, fmt.Errorf("%w: input %dx%d, output %dx%d", gpucore.ErrInvalidDescriptor,
			src.info.Width, src.info.Height, dst.info.Width, dst.info.Height)
	}
	taps := 2*uint64(disp.Args.Radius) + 1
	if wbuf.size < taps*4 {
		return step{}, fmt.Errorf("%w: weights buffer holds %d bytes, radius %d needs %d",
			gpucore.ErrInvalidDescriptor, wbuf.size, disp.Args.Radius, taps*4)
	}
	maxGroups := d.limits.MaxWorkgroupsPerDimension
	if disp.Groups[0] > maxGroups || disp.Groups[1] > maxGroups {
		return step{}, fmt.Errorf("%w: %dx%d work-groups (max %d per dimension)",
			gpucore.ErrInvalidDescriptor, disp.Groups[0], disp.Groups[1], maxGroups)
	}
	return step{
		label:  disp.Label,
		prog:   prog,
		src:    src,
		dst:    dst,
		wbuf:   wbuf,
		radius: disp.Args.Radius,
		groups: disp.Groups,
	}, nil
}

// encode records one compute pass per step. Passes are ordered by WebGPU,
// so recorded barriers need no command of their own. Caller holds d.mu.
func (d *Device) encode(s *submission, label string, steps []step) error {
	for _, st := range steps {
		bg, err := d.bind(s, st)
		if err != nil {
			return err
		}
		s.bindGroups = append(s.bindGroups, bg)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	for i, st := range steps {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: st.label})
		pass.SetPipeline(st.prog.pipeline)
		pass.SetBindGroup(0, s.bindGroups[i], nil)
		pass.Dispatch(st.groups[0], st.groups[1], 1)
		pass.End()
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	s.cmdBuf = cmdBuf
	return nil
}

// bind creates the uniform buffer and bind group of a step.
func (d *Device) bind(s *submission, st step) (hal.BindGroup, error) {
	info := st.dst.info
	params := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(info.Width))                                //nolint:gosec // bounded by limits
	binary.LittleEndian.PutUint32(params[4:], uint32(info.Height))                               //nolint:gosec // bounded by limits
	binary.LittleEndian.PutUint32(params[8:], uint32(info.RowPitch/info.Format.BytesPerTexel())) //nolint:gosec // bounded by limits
	binary.LittleEndian.PutUint32(params[12:], st.radius)

	ub, err := d.createBuffer("gblur params", paramsSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	s.uniforms = append(s.uniforms, ub)
	d.queue.WriteBuffer(ub, 0, params)

	weightsSize := (2*uint64(st.radius) + 1) * 4
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  st.label,
		Layout: st.prog.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: st.wbuf.buf.NativeHandle(), Offset: 0, Size: weightsSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: st.src.buf.NativeHandle(), Offset: 0, Size: st.src.size}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: st.dst.buf.NativeHandle(), Offset: 0, Size: st.dst.size}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	return bg, nil
}

// submitLocked submits s.cmdBuf with a new fence. Caller holds d.mu.
func (d *Device) submitLocked(s *submission) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	s.halFence = fence
	if err := d.queue.Submit([]hal.CommandBuffer{s.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("%w: submit: %w", gpucore.ErrDeviceLost, err)
	}
	return nil
}

// Wait blocks until the submission identified by fence has completed.
func (d *Device) Wait(fence gpucore.Fence) error {
	d.mu.Lock()
	s, ok := d.inflight[fence]
	if !ok {
		issued := d.issued
		d.mu.Unlock()
		if fence == 0 || fence > issued {
			return fmt.Errorf("%w: fence %d", gpucore.ErrInvalidResource, fence)
		}
		return nil
	}
	delete(d.inflight, fence)
	d.mu.Unlock()
	return d.waitSubmission(s)
}

// waitSubmission waits for s on the GPU and releases its objects.
func (d *Device) waitSubmission(s *submission) error {
	d.mu.Lock()
	device := d.device
	d.mu.Unlock()

	err := s.err
	if err == nil && device != nil {
		ok, werr := device.Wait(s.halFence, 1, d.cfg.waitTimeout)
		switch {
		case werr != nil:
			err = fmt.Errorf("%w: wait for fence %d: %w", gpucore.ErrDeviceLost, s.fence, werr)
		case !ok:
			err = fmt.Errorf("%w: fence %d not signaled after %v", gpucore.ErrDeviceLost, s.fence, d.cfg.waitTimeout)
		}
	}

	d.mu.Lock()
	d.freeSubmission(s)
	d.mu.Unlock()
	return err
}

// freeSubmission releases the HAL objects of s. Caller holds d.mu.
func (d *Device) freeSubmission(s *submission) {
	if d.device == nil {
		return
	}
	if s.cmdBuf != nil {
		d.device.FreeCommandBuffer(s.cmdBuf)
		s.cmdBuf = nil
	}
	if s.halFence != nil {
		d.device.DestroyFence(s.halFence)
		s.halFence = nil
	}
	for _, bg := range s.bindGroups {
		d.device.DestroyBindGroup(bg)
	}
	for _, ub := range s.uniforms {
		d.device.DestroyBuffer(ub)
	}
	s.bindGroups, s.uniforms = nil, nil
}
