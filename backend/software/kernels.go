package software

import (
	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/internal/filter"
)

// binding is the resolved argument set of one dispatch.
type binding struct {
	src, dst *texture
	weights  []float32
	radius   int
}

// kernelFunc computes the output texel at (x, y). Callers guarantee that
// (x, y) lies inside the output texture.
type kernelFunc func(b *binding, x, y int)

var kernels = map[string]kernelFunc{
	gpucore.ProgramBlurHorizontal: blurHorizontal,
	gpucore.ProgramBlurVertical:   blurVertical,
}

func blurHorizontal(b *binding, x, y int) {
	w := b.src.info.Width
	row := b.src.data[y*b.src.info.RowPitch:]

	var r, g, bl, a float32
	for k, wt := range b.weights {
		i := filter.ClampIndex(x+k-b.radius, w) * 4
		r += float32(row[i+0]) * wt
		g += float32(row[i+1]) * wt
		bl += float32(row[i+2]) * wt
		a += float32(row[i+3]) * wt
	}
	storeTexel(b.dst, x, y, r, g, bl, a)
}

func blurVertical(b *binding, x, y int) {
	h := b.src.info.Height
	pitch := b.src.info.RowPitch
	col := x * 4

	var r, g, bl, a float32
	for k, wt := range b.weights {
		i := filter.ClampIndex(y+k-b.radius, h)*pitch + col
		r += float32(b.src.data[i+0]) * wt
		g += float32(b.src.data[i+1]) * wt
		bl += float32(b.src.data[i+2]) * wt
		a += float32(b.src.data[i+3]) * wt
	}
	storeTexel(b.dst, x, y, r, g, bl, a)
}

func storeTexel(t *texture, x, y int, r, g, b, a float32) {
	o := y*t.info.RowPitch + x*4
	t.data[o+0] = filter.Quantize(r)
	t.data[o+1] = filter.Quantize(g)
	t.data[o+2] = filter.Quantize(b)
	t.data[o+3] = filter.Quantize(a)
}
