package gblur

import "github.com/gogpu/gblur/gpucore"

// DefaultWorkgroupSize is the work-group size used when WithWorkgroupSize
// is not given.
var DefaultWorkgroupSize = [2]uint32{16, 16}

// ContextOption configures a Context during creation.
//
// Example:
//
//	// Best available backend, default 16x16 work-groups
//	ctx, err := gblur.NewContext()
//
//	// Force the CPU backend with 8x8 work-groups and a kernel cache
//	ctx, err := gblur.NewContext(
//	    gblur.WithBackend(gpucore.BackendSoftware),
//	    gblur.WithWorkgroupSize(8, 8),
//	    gblur.WithWeightCache(32),
//	)
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	backend       string
	device        gpucore.Device
	workgroupSize [2]uint32
	cacheSize     int
	reference     string
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		workgroupSize: DefaultWorkgroupSize,
	}
}

// WithBackend opens the device from the named backend instead of the best
// available one. See gpucore.Available for the registered names.
func WithBackend(name string) ContextOption {
	return func(o *contextOptions) {
		o.backend = name
	}
}

// WithDevice uses an already-open device. The Context does not take
// ownership: Close leaves the device open.
func WithDevice(dev gpucore.Device) ContextOption {
	return func(o *contextOptions) {
		o.device = dev
	}
}

// WithWorkgroupSize sets the number of invocations per work-group in X and
// Y for both passes. Sizes the device cannot run make NewContext fail with
// ErrProgramCompilation.
func WithWorkgroupSize(x, y uint32) ContextOption {
	return func(o *contextOptions) {
		o.workgroupSize = [2]uint32{x, y}
	}
}

// WithWeightCache keeps up to n kernels keyed by radius instead of
// generating the weights on every call.
func WithWeightCache(n int) ContextOption {
	return func(o *contextOptions) {
		if n <= 0 {
			n = 64
		}
		o.cacheSize = n
	}
}

// WithReference sets the engine used by Context.BlurReference when the call
// does not name one.
func WithReference(engine string) ContextOption {
	return func(o *contextOptions) {
		o.reference = engine
	}
}
