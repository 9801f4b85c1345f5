package software

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gblur/gpucore"
)

// execute runs one command buffer on the queue goroutine.
func (d *Device) execute(cb *gpucore.CommandBuffer) error {
	// Textures written since the last barrier covering them.
	dirty := make(map[gpucore.TextureID]bool)

	for i, cmd := range cb.Commands() {
		switch cmd.Kind {
		case gpucore.CommandBarrier:
			for _, id := range cmd.Textures {
				delete(dirty, id)
			}
		case gpucore.CommandDispatch:
			args := cmd.Dispatch.Args
			if dirty[args.Input] {
				return fmt.Errorf("%w: %s: command %d (%s) reads texture %d",
					gpucore.ErrHazard, cb.Label(), i, cmd.Dispatch.Label, args.Input)
			}
			if err := d.dispatch(&cmd.Dispatch); err != nil {
				return fmt.Errorf("%s: command %d: %w", cb.Label(), i, err)
			}
			dirty[args.Output] = true
		default:
			return fmt.Errorf("%w: command kind %s", gpucore.ErrInvalidDescriptor, cmd.Kind)
		}
	}
	return nil
}

// resolve looks up the resources of a dispatch.
func (d *Device) resolve(disp *gpucore.Dispatch) (*program, *binding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prog, ok := d.programs[disp.Program]
	if !ok {
		return nil, nil, fmt.Errorf("%w: program %d", gpucore.ErrInvalidResource, disp.Program)
	}
	src, ok := d.textures[disp.Args.Input]
	if !ok {
		return nil, nil, fmt.Errorf("%w: input texture %d", gpucore.ErrInvalidResource, disp.Args.Input)
	}
	dst, ok := d.textures[disp.Args.Output]
	if !ok {
		return nil, nil, fmt.Errorf("%w: output texture %d", gpucore.ErrInvalidResource, disp.Args.Output)
	}
	wbuf, ok := d.buffers[disp.Args.Weights]
	if !ok {
		return nil, nil, fmt.Errorf("%w: weights buffer %d", gpucore.ErrInvalidResource, disp.Args.Weights)
	}

	if disp.Args.Input == disp.Args.Output {
		return nil, nil, fmt.Errorf("%w: input and output are the same texture", gpucore.ErrInvalidDescriptor)
	}
	if src.usage&gpucore.TextureUsageStorageRead == 0 || dst.usage&gpucore.TextureUsageStorageWrite == 0 {
		return nil, nil, fmt.Errorf("%w: missing storage usage", gpucore.ErrInvalidDescriptor)
	}
	if src.info.Width != dst.info.Width || src.info.Height != dst.info.Height {
		return nil, nil, fmt.Errorf("%w: input %dx%d, output %dx%d", gpucore.ErrInvalidDescriptor,
			src.info.Width, src.info.Height, dst.info.Width, dst.info.Height)
	}
	taps := 2*int(disp.Args.Radius) + 1
	if len(wbuf.data) < taps*4 {
		return nil, nil, fmt.Errorf("%w: weights buffer holds %d bytes, radius %d needs %d",
			gpucore.ErrInvalidDescriptor, len(wbuf.data), disp.Args.Radius, taps*4)
	}

	weights := make([]float32, taps)
	for i := range weights {
		weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(wbuf.data[i*4:]))
	}
	return prog, &binding{src: src, dst: dst, weights: weights, radius: int(disp.Args.Radius)}, nil
}

// dispatch runs every work-group of disp on the worker pool.
func (d *Device) dispatch(disp *gpucore.Dispatch) error {
	prog, b, err := d.resolve(disp)
	if err != nil {
		return err
	}

	gx, gy := disp.Groups[0], disp.Groups[1]
	maxGroups := d.cfg.limits.MaxWorkgroupsPerDimension
	if gx > maxGroups || gy > maxGroups {
		return fmt.Errorf("%w: %dx%d work-groups (max %d per dimension)",
			gpucore.ErrInvalidDescriptor, gx, gy, maxGroups)
	}
	wx, wy := int(prog.workgroupSize[0]), int(prog.workgroupSize[1])
	w, h := b.dst.info.Width, b.dst.info.Height

	slogger().Debug("software: dispatch",
		slog.String("program", prog.name),
		slog.Int("width", w),
		slog.Int("height", h),
		slog.Int("radius", b.radius),
		slog.Any("groups", disp.Groups),
		slog.Any("workgroup_size", prog.workgroupSize))

	kernel := prog.kernel
	cols := int(gx)
	d.pool.ForEach(int(gx)*int(gy), func(group int) {
		x0 := (group % cols) * wx
		y0 := (group / cols) * wy
		for ly := 0; ly < wy; ly++ {
			y := y0 + ly
			if y >= h {
				return
			}
			for lx := 0; lx < wx; lx++ {
				x := x0 + lx
				if x >= w {
					break
				}
				kernel(b, x, y)
			}
		}
	})
	return nil
}
