package filter

import "github.com/chewxy/math32"

// Blur applies a separable convolution with weights to a tightly packed
// RGBA8 buffer and returns a new buffer of the same size.
//
// It is the host-side model of the two compute programs: the horizontal
// pass rounds into an 8-bit intermediate, the vertical pass reads that
// intermediate, and out-of-range taps clamp to the nearest edge texel.
// Device backends are expected to match it byte for byte.
func Blur(pix []byte, width, height int, weights []float32) []byte {
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return nil
	}
	tmp := make([]byte, width*height*4)
	dst := make([]byte, width*height*4)
	radius := len(weights) / 2

	// Pass 1: horizontal (src -> tmp).
	for y := 0; y < height; y++ {
		row := y * width * 4
		for x := 0; x < width; x++ {
			var r, g, b, a float32
			for k, w := range weights {
				sx := ClampIndex(x+k-radius, width)
				i := row + sx*4
				r += float32(pix[i+0]) * w
				g += float32(pix[i+1]) * w
				b += float32(pix[i+2]) * w
				a += float32(pix[i+3]) * w
			}
			o := row + x*4
			tmp[o+0] = Quantize(r)
			tmp[o+1] = Quantize(g)
			tmp[o+2] = Quantize(b)
			tmp[o+3] = Quantize(a)
		}
	}

	// Pass 2: vertical (tmp -> dst).
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var r, g, b, a float32
			for k, w := range weights {
				sy := ClampIndex(y+k-radius, height)
				i := (sy*width + x) * 4
				r += float32(tmp[i+0]) * w
				g += float32(tmp[i+1]) * w
				b += float32(tmp[i+2]) * w
				a += float32(tmp[i+3]) * w
			}
			o := (y*width + x) * 4
			dst[o+0] = Quantize(r)
			dst[o+1] = Quantize(g)
			dst[o+2] = Quantize(b)
			dst[o+3] = Quantize(a)
		}
	}

	return dst
}

// ClampIndex clamps i to [0, n-1] (edge extension).
func ClampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Quantize clamps a float32 to [0, 255] and rounds to the nearest uint8.
func Quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math32.Floor(v + 0.5))
}
