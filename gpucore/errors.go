package gpucore

import "errors"

// Common device errors. Backends wrap these with fmt.Errorf("...: %w").
var (
	// ErrNoDevice is returned when no compute-capable device is available.
	ErrNoDevice = errors.New("gpucore: no compute-capable device")

	// ErrBackendNotRegistered is returned by Open for unknown backend names.
	ErrBackendNotRegistered = errors.New("gpucore: backend not registered")

	// ErrUnknownProgram is returned when a program name is not provided by
	// the backend.
	ErrUnknownProgram = errors.New("gpucore: unknown program")

	// ErrCompile is returned when a program fails to compile.
	ErrCompile = errors.New("gpucore: program compilation failed")

	// ErrOutOfMemory is returned when a texture or buffer cannot be allocated.
	ErrOutOfMemory = errors.New("gpucore: out of device memory")

	// ErrInvalidResource is returned for unknown or destroyed resource IDs.
	ErrInvalidResource = errors.New("gpucore: invalid resource")

	// ErrInvalidDescriptor is returned for malformed descriptors.
	ErrInvalidDescriptor = errors.New("gpucore: invalid descriptor")

	// ErrHazard is returned when a dispatch reads a texture written earlier
	// in the same command buffer without an intervening barrier.
	ErrHazard = errors.New("gpucore: read-after-write hazard without barrier")

	// ErrDeviceLost is returned when the device stops accepting work.
	ErrDeviceLost = errors.New("gpucore: device lost")
)
