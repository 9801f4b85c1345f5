package gblur

import (
	"fmt"

	"github.com/gogpu/gblur/internal/filter"
)

// SigmaRatio relates radius and standard deviation: sigma = radius/SigmaRatio.
const SigmaRatio = filter.SigmaRatio

// KernelWeights returns the 2*radius+1 normalized Gaussian weights used by
// both blur passes.
func KernelWeights(radius int) ([]float32, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: radius %d", ErrInvalidInput, radius)
	}
	return filter.GaussianWeights(radius)
}

// Sigma returns the standard deviation used for radius.
func Sigma(radius int) float64 {
	return filter.Sigma(radius)
}
