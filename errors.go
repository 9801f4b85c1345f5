package gblur

import (
	"errors"
	"fmt"

	"github.com/gogpu/gblur/gpucore"
)

// Errors returned by gblur. Each is wrapped with context; test with
// errors.Is.
var (
	// ErrUnsupportedEnvironment is returned by NewContext when no compute
	// device can be opened, and by BlurReference when the requested engine
	// is not available in this build.
	ErrUnsupportedEnvironment = errors.New("gblur: unsupported environment")

	// ErrResourceExhausted is returned when a texture or buffer cannot be
	// allocated on the device.
	ErrResourceExhausted = errors.New("gblur: device resources exhausted")

	// ErrProgramCompilation is returned by NewContext when a compute program
	// is missing or fails to compile.
	ErrProgramCompilation = errors.New("gblur: program compilation failed")

	// ErrInvalidInput is returned for nil or zero-sized bitmaps, malformed
	// pixel buffers and negative radii.
	ErrInvalidInput = errors.New("gblur: invalid input")

	// ErrContextClosed is returned by calls on a closed Context.
	ErrContextClosed = errors.New("gblur: context closed")
)

// mapDeviceError translates a gpucore error into the gblur taxonomy.
// The device error stays in the chain.
func mapDeviceError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gpucore.ErrOutOfMemory):
		return fmt.Errorf("%s: %w: %w", op, ErrResourceExhausted, err)
	case errors.Is(err, gpucore.ErrCompile), errors.Is(err, gpucore.ErrUnknownProgram):
		return fmt.Errorf("%s: %w: %w", op, ErrProgramCompilation, err)
	case errors.Is(err, gpucore.ErrNoDevice), errors.Is(err, gpucore.ErrBackendNotRegistered):
		return fmt.Errorf("%s: %w: %w", op, ErrUnsupportedEnvironment, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
