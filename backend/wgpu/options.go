//go:build !nogpu

package wgpu

import (
	"time"

	"github.com/gogpu/gputypes"
)

// DefaultWaitTimeout bounds a single fence wait.
const DefaultWaitTimeout = 5 * time.Second

// maxStorageBindingSize is the WebGPU default for
// maxStorageBufferBindingSize. Textures larger than this cannot be bound.
const maxStorageBindingSize = 128 << 20

// Option configures a GPU Device.
type Option func(*config)

type config struct {
	api         gputypes.Backend
	waitTimeout time.Duration
	preferLow   bool
}

func defaultConfig() config {
	return config{
		api:         gputypes.BackendVulkan,
		waitTimeout: DefaultWaitTimeout,
	}
}

// WithAPI selects the HAL backend (Vulkan by default).
func WithAPI(api gputypes.Backend) Option {
	return func(c *config) {
		c.api = api
	}
}

// WithWaitTimeout bounds each fence wait. A wait that times out reports
// gpucore.ErrDeviceLost.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

// WithLowPower prefers an integrated adapter over a discrete one.
func WithLowPower() Option {
	return func(c *config) {
		c.preferLow = true
	}
}
