package bench

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/gblur"
)

// tileSize is the edge of the pattern that test images are scaled from.
const tileSize = 64

// TestImage returns a deterministic opaque image of the given size: a
// colour gradient pattern scaled up from a fixed tile, overlaid with a
// one-pixel checker in the blue channel so every radius has detail to
// remove.
func TestImage(s Size) (*gblur.Bitmap, error) {
	tile := image.NewRGBA(image.Rect(0, 0, tileSize, tileSize))
	for y := 0; y < tileSize; y++ {
		for x := 0; x < tileSize; x++ {
			var g uint8
			if (x/8+y/8)%2 == 0 {
				g = 200
			}
			tile.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / (tileSize - 1)),
				G: g,
				B: uint8(y * 255 / (tileSize - 1)),
				A: 255,
			})
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), tile, tile.Bounds(), draw.Src, nil)

	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			if (x+y)%2 == 0 {
				dst.Pix[dst.PixOffset(x, y)+2] ^= 0x40
			}
		}
	}
	return gblur.FromImage(dst)
}
