package gblur

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/gogpu/gblur/gpucore"
)

// Test helper functions shared across gblur tests.

// newTestContext creates a Context on the software backend and closes it
// when the test ends.
func newTestContext(t testing.TB, opts ...ContextOption) *Context {
	t.Helper()
	opts = append([]ContextOption{WithBackend(gpucore.BackendSoftware)}, opts...)
	c, err := NewContext(opts...)
	if err != nil {
		t.Fatalf("NewContext() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// gradientBitmap returns an opaque image with horizontal and vertical
// gradients and a checker pattern of 8 pixel cells in blue.
func gradientBitmap(t testing.TB, w, h int) *Bitmap {
	t.Helper()
	pix := make([]uint8, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i+0] = uint8(x * 255 / max(w-1, 1))
			pix[i+1] = uint8(y * 255 / max(h-1, 1))
			if (x/8+y/8)%2 == 0 {
				pix[i+2] = 255
			}
			pix[i+3] = 255
		}
	}
	b, err := BitmapFromPixels(w, h, pix)
	if err != nil {
		t.Fatalf("BitmapFromPixels() error = %v", err)
	}
	return b
}

// checkerBitmap returns an opaque black/white checkerboard with square
// cells of the given size.
func checkerBitmap(t testing.TB, w, h, cell int) *Bitmap {
	t.Helper()
	pix := make([]uint8, w*h*4)
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
	b, err := BitmapFromPixels(w, h, pix)
	if err != nil {
		t.Fatalf("BitmapFromPixels() error = %v", err)
	}
	return b
}

// meanDelta returns the mean absolute per-channel difference in [0, 255].
func meanDelta(a, b *Bitmap) float64 {
	var sum int
	for i := range a.pix {
		d := int(a.pix[i]) - int(b.pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a.pix))
}

// totalVariation sums absolute differences between horizontally and
// vertically adjacent channel values.
func totalVariation(b *Bitmap) int {
	tv := 0
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			i := (y*b.width + x) * 4
			for c := 0; c < 4; c++ {
				if x+1 < b.width {
					tv += abs(int(b.pix[i+c]) - int(b.pix[i+4+c]))
				}
				if y+1 < b.height {
					tv += abs(int(b.pix[i+c]) - int(b.pix[i+b.width*4+c]))
				}
			}
		}
	}
	return tv
}

// loggingDevice records the logger propagated by SetLogger.
type loggingDevice struct {
	gpucore.Device

	mu     sync.Mutex
	logger *slog.Logger
}

func (d *loggingDevice) SetLogger(l *slog.Logger) {
	d.mu.Lock()
	d.logger = l
	d.mu.Unlock()
}

func (d *loggingDevice) currentLogger() *slog.Logger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logger
}

// failingSubmitDevice rejects every submission.
type failingSubmitDevice struct {
	gpucore.Device
	err error
}

func (d *failingSubmitDevice) Submit(*gpucore.CommandBuffer) (gpucore.Fence, error) {
	return 0, d.err
}
