package filter

// Test helper functions shared across filter tests.

// solidPix returns a tightly packed RGBA buffer filled with one color.
func solidPix(w, h int, r, g, b, a uint8) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = a
	}
	return pix
}

// checkerPix returns a black/white checkerboard with cells of the given size.
func checkerPix(w, h, cell int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			var v uint8
			if (x/cell+y/cell)%2 == 0 {
				v = 255
			}
			pix[i+0], pix[i+1], pix[i+2], pix[i+3] = v, v, v, 255
		}
	}
	return pix
}

// absf32 returns the absolute value of a float32.
func absf32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
