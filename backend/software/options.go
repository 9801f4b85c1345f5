package software

import "github.com/gogpu/gblur/gpucore"

// Option configures a software Device.
type Option func(*config)

type config struct {
	memoryLimit int64
	workers     int
	limits      gpucore.Limits
}

func defaultConfig() config {
	return config{limits: gpucore.DefaultLimits()}
}

// WithMemoryLimit caps the bytes of textures and buffers alive at once.
// Allocations beyond the cap fail with gpucore.ErrOutOfMemory.
// Zero (the default) means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(c *config) {
		c.memoryLimit = bytes
	}
}

// WithWorkers sets the number of worker goroutines executing work-groups.
// Zero or negative selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLimits overrides the reported and enforced device limits.
func WithLimits(l gpucore.Limits) Option {
	return func(c *config) {
		c.limits = l
	}
}
