package gblur

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/internal/pipeline"
)

// Stage names of a compute blur, in BlurResult.Stages.
const (
	StageEncode     = "encode"
	StageAllocate   = "allocate"
	StageWeights    = "weights"
	StageHorizontal = "horizontal"
	StageVertical   = "vertical"
	StageDecode     = "decode"
)

// BlurGPU blurs src with a Gaussian kernel of the given radius on the
// compute device. It blocks until both passes have completed and the result
// has been read back.
//
// Radius 0 runs the full pipeline and returns a byte-identical copy. A
// radius larger than the image is legal; edge texels extend outward.
func (c *Context) BlurGPU(src *Bitmap, radius int) (*BlurResult, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: radius %d", ErrInvalidInput, radius)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrContextClosed
	}

	start := time.Now()
	inv := &invocation{c: c, dev: c.dev, src: src, radius: radius}
	defer inv.release()

	g := pipeline.New()
	g.Add(StageEncode, inv.encode)
	g.Add(StageAllocate, inv.allocate)
	g.Add(StageWeights, inv.uploadWeights)
	g.Add(StageHorizontal, inv.horizontalPass, StageEncode, StageAllocate, StageWeights)
	g.Add(StageVertical, inv.verticalPass, StageHorizontal)
	g.Add(StageDecode, inv.decode, StageVertical)

	timings, err := g.Run(context.Background())
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	stages := make([]StageTiming, len(timings))
	for i, t := range timings {
		stages[i] = StageTiming{Name: t.Name, Start: t.Start, Duration: t.Duration}
	}

	Logger().Debug("gblur: blur complete",
		slog.Int("width", src.width),
		slog.Int("height", src.height),
		slog.Int("radius", radius),
		slog.Duration("elapsed", elapsed))

	return &BlurResult{
		Bitmap:  inv.result,
		Elapsed: elapsed,
		Path:    PathCompute,
		Radius:  radius,
		Engine:  c.dev.Info().Backend,
		Stages:  stages,
	}, nil
}

// invocation holds the per-call device resources. Each stage writes only
// its own fields; the stage graph orders the reads after the writes.
type invocation struct {
	c      *Context
	dev    gpucore.Device
	src    *Bitmap
	radius int

	input        gpucore.TextureID
	intermediate gpucore.TextureID
	output       gpucore.TextureID
	weights      gpucore.BufferID

	result *Bitmap
}

func (inv *invocation) encode(context.Context) error {
	id, err := encodeTexture(inv.dev, inv.src)
	if err != nil {
		return err
	}
	inv.input = id
	return nil
}

func (inv *invocation) allocate(context.Context) error {
	w, h := inv.src.width, inv.src.height
	var err error
	if inv.intermediate, err = newTexture(inv.dev, w, h, "intermediate"); err != nil {
		return err
	}
	if inv.output, err = newTexture(inv.dev, w, h, "output"); err != nil {
		return err
	}
	return nil
}

func (inv *invocation) uploadWeights(context.Context) error {
	weights, err := inv.c.kernelWeights(inv.radius)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	raw := make([]byte, len(weights)*4)
	for i, w := range weights {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(w))
	}

	id, err := inv.dev.CreateBuffer(len(raw), gpucore.BufferUsageStorage|gpucore.BufferUsageCopyDst)
	if err != nil {
		return mapDeviceError("create weights", err)
	}
	inv.weights = id
	if err := inv.dev.WriteBuffer(id, 0, raw); err != nil {
		return mapDeviceError("upload weights", err)
	}
	return nil
}

func (inv *invocation) dispatch(label string, program gpucore.ProgramID, in, out gpucore.TextureID) gpucore.Dispatch {
	wg := inv.c.workgroupSize
	return gpucore.Dispatch{
		Label:   label,
		Program: program,
		Args: gpucore.KernelArgs{
			Input:   in,
			Output:  out,
			Weights: inv.weights,
			Radius:  uint32(inv.radius), //nolint:gosec // radius checked non-negative
		},
		Groups: [2]uint32{
			gpucore.WorkgroupCount(inv.src.width, wg[0]),
			gpucore.WorkgroupCount(inv.src.height, wg[1]),
		},
	}
}

// submitAndWait submits cb and blocks on its fence.
func (inv *invocation) submitAndWait(op string, cb *gpucore.CommandBuffer) error {
	fence, err := inv.dev.Submit(cb)
	if err != nil {
		return mapDeviceError(op, err)
	}
	if err := inv.dev.Wait(fence); err != nil {
		return mapDeviceError(op, err)
	}
	return nil
}

func (inv *invocation) horizontalPass(context.Context) error {
	enc := gpucore.NewCommandEncoder("gblur horizontal")
	enc.Dispatch(inv.dispatch("horizontal", inv.c.horizontal, inv.input, inv.intermediate))
	return inv.submitAndWait("horizontal pass", enc.Finish())
}

// verticalPass starts with a barrier on the intermediate texture: it is
// already complete (the horizontal fence has signalled), the barrier makes
// its writes visible to this command buffer.
func (inv *invocation) verticalPass(context.Context) error {
	enc := gpucore.NewCommandEncoder("gblur vertical")
	enc.Barrier(inv.intermediate)
	enc.Dispatch(inv.dispatch("vertical", inv.c.vertical, inv.intermediate, inv.output))
	return inv.submitAndWait("vertical pass", enc.Finish())
}

func (inv *invocation) decode(context.Context) error {
	bm, err := decodeTexture(inv.dev, inv.output)
	if err != nil {
		return err
	}
	inv.result = bm
	return nil
}

func (inv *invocation) release() {
	for _, id := range []gpucore.TextureID{inv.input, inv.intermediate, inv.output} {
		if id != gpucore.InvalidID {
			inv.dev.DestroyTexture(id)
		}
	}
	if inv.weights != gpucore.InvalidID {
		inv.dev.DestroyBuffer(inv.weights)
	}
}
