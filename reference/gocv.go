//go:build gocv

package reference

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

func init() {
	Register(gocvEngine{})
}

// gocvEngine runs OpenCV's GaussianBlur with replicated borders, which is
// the same edge rule as the compute kernel.
type gocvEngine struct{}

func (gocvEngine) Name() string { return "gocv" }

func (gocvEngine) Blur(src *image.RGBA, radius int, sigma float64) (*image.RGBA, error) {
	if radius == 0 || sigma <= 0 {
		return clone(src), nil
	}
	packed := clone(src)
	b := packed.Bounds()

	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, packed.Pix)
	if err != nil {
		return nil, fmt.Errorf("reference: gocv: %w", err)
	}
	defer mat.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()

	k := 2*radius + 1
	if err := gocv.GaussianBlur(mat, &blurred, image.Point{X: k, Y: k}, sigma, sigma, gocv.BorderReplicate); err != nil {
		return nil, fmt.Errorf("reference: gocv: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	copy(dst.Pix, blurred.ToBytes())
	return dst, nil
}
