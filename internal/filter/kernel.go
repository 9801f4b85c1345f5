package filter

import (
	"errors"
	"math"
	"sync"
)

// SigmaRatio relates the kernel radius to the Gaussian standard deviation:
// sigma = radius / SigmaRatio. Three standard deviations on each side cover
// 99.7% of the distribution, so the truncated tails stay below 0.3% of the
// total weight. The value is a tunable design constant, not a derived one.
const SigmaRatio = 3.0

// ErrNegativeRadius is returned for radius < 0.
var ErrNegativeRadius = errors.New("filter: negative radius")

// GaussianWeights generates the 1D Gaussian kernel for the given radius.
// The kernel has 2*radius+1 taps, uses sigma = radius/SigmaRatio and is
// normalized so all values sum to 1.0.
//
// For radius == 0, returns a single-element kernel [1.0] (identity).
func GaussianWeights(radius int) ([]float32, error) {
	if radius < 0 {
		return nil, ErrNegativeRadius
	}
	if radius == 0 {
		return []float32{1.0}, nil
	}
	return GaussianWeightsSigma(radius, float64(radius)/SigmaRatio)
}

// GaussianWeightsSigma generates a 2*radius+1 tap Gaussian kernel with an
// explicit standard deviation. A non-positive sigma yields the identity
// kernel padded with zeros.
func GaussianWeightsSigma(radius int, sigma float64) ([]float32, error) {
	if radius < 0 {
		return nil, ErrNegativeRadius
	}
	size := radius*2 + 1
	kernel := make([]float32, size)
	if sigma <= 0 || radius == 0 {
		kernel[radius] = 1.0
		return kernel, nil
	}

	// G(x) = exp(-x²/(2σ²)); the 1/(σ√(2π)) factor cancels on normalization.
	twoSigmaSq := 2 * sigma * sigma
	vals := make([]float64, size)
	sum := 0.0
	for i := range vals {
		x := float64(i - radius)
		vals[i] = math.Exp(-(x * x) / twoSigmaSq)
		sum += vals[i]
	}

	// Normalize in float64 and mirror so the kernel is exactly symmetric.
	for i := 0; i <= radius; i++ {
		w := float32(vals[i] / sum)
		kernel[i] = w
		kernel[size-1-i] = w
	}
	return kernel, nil
}

// Sigma returns the standard deviation used for radius.
func Sigma(radius int) float64 {
	return float64(radius) / SigmaRatio
}

// WeightCache caches Gaussian kernels by radius.
// Kernels returned from the cache are shared and must not be modified.
type WeightCache struct {
	mu     sync.RWMutex
	cache  map[int][]float32
	maxLen int
}

// NewWeightCache creates a kernel cache with the given maximum entries.
// maxLen <= 0 selects 64.
func NewWeightCache(maxLen int) *WeightCache {
	if maxLen <= 0 {
		maxLen = 64
	}
	return &WeightCache{
		cache:  make(map[int][]float32),
		maxLen: maxLen,
	}
}

// Get returns the kernel for radius, generating and caching it on a miss.
func (c *WeightCache) Get(radius int) ([]float32, error) {
	c.mu.RLock()
	if kernel, ok := c.cache[radius]; ok {
		c.mu.RUnlock()
		return kernel, nil
	}
	c.mu.RUnlock()

	kernel, err := GaussianWeights(radius)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if len(c.cache) >= c.maxLen {
		// Simple eviction: clear half the cache.
		count := 0
		for k := range c.cache {
			delete(c.cache, k)
			count++
			if count >= c.maxLen/2 {
				break
			}
		}
	}
	c.cache[radius] = kernel
	c.mu.Unlock()

	return kernel, nil
}

// Len returns the number of cached kernels.
func (c *WeightCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
