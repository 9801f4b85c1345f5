package reference

import (
	"image"

	"github.com/disintegration/gift"
)

func init() {
	Register(giftEngine{})
}

// giftEngine applies gift.GaussianBlur. gift derives the kernel extent as
// ceil(3*sigma), which equals radius for sigma = radius/3.
type giftEngine struct{}

func (giftEngine) Name() string { return "gift" }

func (giftEngine) Blur(src *image.RGBA, radius int, sigma float64) (*image.RGBA, error) {
	if radius == 0 || sigma <= 0 {
		return clone(src), nil
	}
	g := gift.New(gift.GaussianBlur(float32(sigma)))
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst, nil
}
