package gblur

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gblur/reference"
)

// ReferenceOption configures BlurReference.
type ReferenceOption func(*referenceOptions)

type referenceOptions struct {
	engine string
}

// WithEngine selects the reference engine by name (see reference.Names).
func WithEngine(name string) ReferenceOption {
	return func(o *referenceOptions) {
		o.engine = name
	}
}

// BlurReference blurs src with an image-filter library using the same
// standard deviation as the compute kernel. Any growth of the image by the
// filter is cropped back to the original extent.
//
// BlurReference needs no Context; it returns ErrUnsupportedEnvironment if
// the requested engine is not part of this build.
func BlurReference(src *Bitmap, radius int, opts ...ReferenceOption) (*BlurResult, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("%w: radius %d", ErrInvalidInput, radius)
	}
	var o referenceOptions
	for _, opt := range opts {
		opt(&o)
	}

	engine, err := reference.Lookup(o.engine)
	if err != nil {
		if errors.Is(err, reference.ErrUnknownEngine) {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedEnvironment, err)
		}
		return nil, err
	}

	img := src.ToImage()
	start := time.Now()
	out, err := engine.Blur(img, radius, Sigma(radius))
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", engine.Name(), err)
	}
	out = reference.Crop(out, src.width, src.height)
	elapsed := time.Since(start)

	pix := out.Pix
	if out.Stride != src.Stride() {
		pix = make([]uint8, src.width*src.height*4)
		for y := 0; y < src.height; y++ {
			copy(pix[y*src.Stride():(y+1)*src.Stride()], out.Pix[y*out.Stride:])
		}
	}

	return &BlurResult{
		Bitmap:  wrapPixels(src.width, src.height, pix),
		Elapsed: elapsed,
		Path:    PathReference,
		Radius:  radius,
		Engine:  engine.Name(),
	}, nil
}

// BlurReference runs BlurReference with the engine configured by
// WithReference, unless opts name another one.
func (c *Context) BlurReference(src *Bitmap, radius int, opts ...ReferenceOption) (*BlurResult, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrContextClosed
	}
	if c.reference != "" {
		opts = append([]ReferenceOption{WithEngine(c.reference)}, opts...)
	}
	return BlurReference(src, radius, opts...)
}
