package reference

import (
	"image"

	"github.com/anthonynsimon/bild/convolution"

	"github.com/gogpu/gblur/internal/filter"
)

func init() {
	Register(bildEngine{})
}

// bildEngine runs bild's separable convolution with the compute kernel's
// weights: a 1×(2r+1) row pass, then its transpose. Edges extend.
//
// blur.Gaussian is not used because its kernel starts at -k for a
// fractional k and is off-centre for most radii.
type bildEngine struct{}

func (bildEngine) Name() string { return "bild" }

func (bildEngine) Blur(src *image.RGBA, radius int, sigma float64) (*image.RGBA, error) {
	if radius == 0 || sigma <= 0 {
		return clone(src), nil
	}
	weights, err := filter.GaussianWeightsSigma(radius, sigma)
	if err != nil {
		return nil, err
	}
	k := convolution.NewKernel(len(weights), 1)
	for i, w := range weights {
		k.Matrix[i] = float64(w)
	}

	// Bias rounds the colour channels; bild truncates to uint8.
	opts := &convolution.Options{Bias: 0.5, Wrap: false}
	out := convolution.Convolve(src, k, opts)
	return convolution.Convolve(out, k.Transposed(), opts), nil
}
