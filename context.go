package gblur

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/internal/filter"

	// The CPU device is always available as the last resort.
	_ "github.com/gogpu/gblur/backend/software"
)

// Context owns a compute device and the two compiled blur programs.
//
// A Context is created explicitly with NewContext and lives until Close.
// It is safe for concurrent use: every blur call allocates its own
// textures and buffers, and Close waits for calls in flight.
type Context struct {
	dev        gpucore.Device
	ownsDevice bool

	horizontal gpucore.ProgramID
	vertical   gpucore.ProgramID

	workgroupSize [2]uint32
	weights       *filter.WeightCache
	reference     string

	mu     sync.RWMutex
	closed bool
}

// NewContext opens a compute device and compiles the blur programs.
//
// Without options the best registered backend is used (see gpucore.Default).
// NewContext fails with ErrUnsupportedEnvironment if no device can be opened
// and with ErrProgramCompilation if a program cannot be compiled.
func NewContext(opts ...ContextOption) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dev, owns, err := openDevice(&o)
	if err != nil {
		return nil, err
	}

	c := &Context{
		dev:           dev,
		ownsDevice:    owns,
		workgroupSize: o.workgroupSize,
		reference:     o.reference,
	}
	if o.cacheSize > 0 {
		c.weights = filter.NewWeightCache(o.cacheSize)
	}

	if err := c.compile(); err != nil {
		c.release()
		return nil, err
	}

	trackContext(c)
	info := dev.Info()
	Logger().Info("gblur: context ready",
		slog.String("backend", info.Backend),
		slog.String("device", info.Name),
		slog.Any("workgroup_size", c.workgroupSize))
	return c, nil
}

func openDevice(o *contextOptions) (gpucore.Device, bool, error) {
	if o.device != nil {
		return o.device, false, nil
	}

	var (
		dev gpucore.Device
		err error
	)
	if o.backend != "" {
		dev, err = gpucore.Open(o.backend)
	} else {
		dev, err = gpucore.Default()
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrUnsupportedEnvironment, err)
	}
	if dev == nil {
		return nil, false, fmt.Errorf("%w: backend %q returned no device", ErrUnsupportedEnvironment, o.backend)
	}
	return dev, true, nil
}

func (c *Context) compile() error {
	var err error
	c.horizontal, err = c.dev.CompileProgram(&gpucore.ProgramDesc{
		Label:         "gblur horizontal",
		Name:          gpucore.ProgramBlurHorizontal,
		WorkgroupSize: c.workgroupSize,
	})
	if err != nil {
		return mapDeviceError("compile horizontal", err)
	}
	c.vertical, err = c.dev.CompileProgram(&gpucore.ProgramDesc{
		Label:         "gblur vertical",
		Name:          gpucore.ProgramBlurVertical,
		WorkgroupSize: c.workgroupSize,
	})
	if err != nil {
		return mapDeviceError("compile vertical", err)
	}
	return nil
}

func (c *Context) release() {
	if c.horizontal != gpucore.InvalidID {
		c.dev.DestroyProgram(c.horizontal)
		c.horizontal = gpucore.InvalidID
	}
	if c.vertical != gpucore.InvalidID {
		c.dev.DestroyProgram(c.vertical)
		c.vertical = gpucore.InvalidID
	}
	if c.ownsDevice {
		c.dev.Destroy()
	}
}

// Close releases the programs and, unless the device was supplied with
// WithDevice, the device. Calls after Close return ErrContextClosed.
// Close is safe to call multiple times.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	untrackContext(c)
	c.release()
	return nil
}

// Backend returns the registry name of the device backend.
func (c *Context) Backend() string {
	return c.dev.Info().Backend
}

// DeviceInfo describes the device in use.
func (c *Context) DeviceInfo() gpucore.AdapterInfo {
	return c.dev.Info()
}

// WorkgroupSize returns the work-group size of both programs.
func (c *Context) WorkgroupSize() [2]uint32 {
	return c.workgroupSize
}

// kernelWeights returns the weights for radius, cached if configured.
func (c *Context) kernelWeights(radius int) ([]float32, error) {
	if c.weights != nil {
		return c.weights.Get(radius)
	}
	return filter.GaussianWeights(radius)
}
