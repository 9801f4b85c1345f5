// Package reference runs a Gaussian blur through an image-filter library.
//
// The engines here are independent of the compute pipeline and serve as
// the correctness and performance baseline it is compared against. Each
// engine applies a single declarative Gaussian blur operator with the same
// standard deviation the compute kernel uses.
//
// Engines:
//   - "gift": github.com/disintegration/gift (default)
//   - "bild": github.com/anthonynsimon/bild/blur
//   - "gocv": gocv.io/x/gocv, only in builds with the gocv tag
package reference

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
)

// DefaultEngine is the engine used when none is named.
const DefaultEngine = "gift"

// ErrUnknownEngine is returned by Lookup for names that are not registered.
var ErrUnknownEngine = errors.New("reference: unknown engine")

// Engine blurs an image with a Gaussian filter.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string

	// Blur returns a blurred copy of src. The kernel covers radius texels on
	// each side with standard deviation sigma. The result may be larger
	// than src; callers crop it with Crop.
	Blur(src *image.RGBA, radius int, sigma float64) (*image.RGBA, error)
}

var (
	mu      sync.RWMutex
	engines = make(map[string]Engine)
)

// Register adds an engine, replacing one with the same name.
func Register(e Engine) {
	mu.Lock()
	defer mu.Unlock()
	engines[e.Name()] = e
}

// Lookup returns the named engine. An empty name selects DefaultEngine.
func Lookup(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	mu.RLock()
	defer mu.RUnlock()
	e, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEngine, name, namesLocked())
	}
	return e, nil
}

// Names returns the registered engine names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Crop returns the width x height region at the center of img, with its
// origin at (0, 0). Filters that grow the image by the kernel extent grow
// it evenly on every side, so the center is the original extent. If img
// already has the requested size it is returned rebased but uncopied.
func Crop(img *image.RGBA, width, height int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height && b.Min == (image.Point{}) {
		return img
	}

	offX := b.Min.X + (b.Dx()-width)/2
	offY := b.Min.Y + (b.Dy()-height)/2
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := offY + y
		if sy < b.Min.Y || sy >= b.Max.Y {
			continue
		}
		for x := 0; x < width; x++ {
			sx := offX + x
			if sx < b.Min.X || sx >= b.Max.X {
				continue
			}
			si := img.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], img.Pix[si:si+4])
		}
	}
	return dst
}

// clone returns a copy of src rebased at (0, 0).
func clone(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], src.Pix[si:si+b.Dx()*4])
	}
	return dst
}
