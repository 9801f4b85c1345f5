package reference

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"testing"
)

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func checkerRGBA(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestLookup(t *testing.T) {
	e, err := Lookup("")
	if err != nil {
		t.Fatalf("Lookup(\"\") error = %v", err)
	}
	if e.Name() != DefaultEngine {
		t.Errorf("default engine = %q, want %q", e.Name(), DefaultEngine)
	}

	if _, err := Lookup("photoshop"); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("Lookup(photoshop) error = %v, want ErrUnknownEngine", err)
	}

	names := Names()
	for _, want := range []string{"bild", "gift"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() = %v, missing %q", names, want)
		}
	}
}

func TestEngines_PreserveSize(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			e, _ := Lookup(name)
			src := checkerRGBA(31, 17)
			for _, r := range []int{0, 1, 5, 40} {
				out, err := e.Blur(src, r, float64(r)/3)
				if err != nil {
					t.Fatalf("Blur(r=%d) error = %v", r, err)
				}
				out = Crop(out, 31, 17)
				if got := out.Bounds(); got != src.Bounds() {
					t.Errorf("r=%d: bounds = %v, want %v", r, got, src.Bounds())
				}
			}
		})
	}
}

func TestEngines_ZeroRadiusIsCopy(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			e, _ := Lookup(name)
			src := checkerRGBA(9, 9)
			out, err := e.Blur(src, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(out.Pix, src.Pix) {
				t.Error("radius 0 changed the image")
			}
			out.Pix[0] ^= 0xff
			if out.Pix[0] == src.Pix[0] {
				t.Error("radius 0 returned the source instead of a copy")
			}
		})
	}
}

func TestEngines_SolidColorStaysSolid(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			e, _ := Lookup(name)
			out, err := e.Blur(solidRGBA(8, 8, red), 3, 1)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < len(out.Pix); i += 4 {
				got := out.Pix[i : i+4]
				if absDiff(got[0], 255) > 1 || got[1] > 1 || got[2] > 1 || absDiff(got[3], 255) > 1 {
					t.Fatalf("pixel %d = %v, want red", i/4, got)
				}
			}
		})
	}
}

func TestGift_CheckerboardToGray(t *testing.T) {
	e, _ := Lookup("gift")
	out, err := e.Blur(checkerRGBA(40, 40), 5, 5.0/3)
	if err != nil {
		t.Fatal(err)
	}
	for y := 8; y < 32; y++ {
		for x := 8; x < 32; x++ {
			v := out.RGBAAt(x, y).R
			if absDiff(v, 128) > 10 {
				t.Fatalf("pixel (%d,%d) = %d, want ~128", x, y, v)
			}
		}
	}
}

func TestEngines_KernelCentred(t *testing.T) {
	for _, name := range Names() {
		for _, r := range []int{1, 3, 10} {
			t.Run(fmt.Sprintf("%s/r=%d", name, r), func(t *testing.T) {
				e, _ := Lookup(name)
				src := solidRGBA(41, 1, color.RGBA{A: 255})
				src.SetRGBA(20, 0, color.RGBA{R: 255, A: 255})

				out, err := e.Blur(src, r, float64(r)/3)
				if err != nil {
					t.Fatal(err)
				}
				out = Crop(out, 41, 1)
				var sum, moment float64
				for x := 0; x < 41; x++ {
					v := float64(out.RGBAAt(x, 0).R)
					sum += v
					moment += v * float64(x)
				}
				if sum == 0 {
					t.Fatal("impulse vanished")
				}
				if c := moment / sum; math.Abs(c-20) > 0.05 {
					t.Errorf("centroid = %.2f, want 20", c)
				}
			})
		}
	}
}

func TestCrop(t *testing.T) {
	grown := image.NewRGBA(image.Rect(-2, -2, 6, 5))
	grown.SetRGBA(-2, -2, color.RGBA{R: 9, A: 255})
	grown.SetRGBA(0, 0, color.RGBA{G: 7, A: 255})

	out := Crop(grown, 4, 3)
	if got := out.Bounds(); got != image.Rect(0, 0, 4, 3) {
		t.Fatalf("bounds = %v, want (0,0)-(4,3)", got)
	}
	// Growth of 2 on each side: (0, 0) of the crop is (0, 0) of the source.
	if got := out.RGBAAt(0, 0); got.G != 7 {
		t.Errorf("RGBAAt(0,0) = %v, want G=7", got)
	}
}

func TestCrop_SameSize(t *testing.T) {
	img := checkerRGBA(5, 5)
	if Crop(img, 5, 5) != img {
		t.Error("Crop of an already sized image should return it unchanged")
	}
}
