package gblur

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Bitmap is an immutable RGBA image with 8 bits per channel.
//
// Pixels are stored row-major from the top-left corner, 4 bytes per pixel,
// with no padding between rows. Alpha may be premultiplied or straight; the
// blur treats all four channels alike, so the output uses the same
// convention as the input.
//
// Bitmap implements image.Image.
type Bitmap struct {
	width  int
	height int
	pix    []uint8
}

// NewBitmap creates a bitmap of the given size filled with c.
func NewBitmap(width, height int, c color.Color) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bitmap size %dx%d", ErrInvalidInput, width, height)
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	pix := make([]uint8, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = rgba.R
		pix[i+1] = rgba.G
		pix[i+2] = rgba.B
		pix[i+3] = rgba.A
	}
	return &Bitmap{width: width, height: height, pix: pix}, nil
}

// BitmapFromPixels creates a bitmap from tightly packed RGBA bytes.
// The data is copied; len(pix) must equal width*height*4.
func BitmapFromPixels(width, height int, pix []uint8) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bitmap size %dx%d", ErrInvalidInput, width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: pixel buffer holds %d bytes, %dx%d needs %d",
			ErrInvalidInput, len(pix), width, height, width*height*4)
	}
	data := make([]uint8, len(pix))
	copy(data, pix)
	return &Bitmap{width: width, height: height, pix: data}, nil
}

// FromImage converts any image to a bitmap. The result has the size of
// img.Bounds() with its origin moved to (0, 0).
func FromImage(img image.Image) (*Bitmap, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: empty image bounds %v", ErrInvalidInput, bounds)
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return &Bitmap{width: bounds.Dx(), height: bounds.Dy(), pix: dst.Pix}, nil
}

// wrapPixels adopts pix without copying. The caller must not retain pix.
func wrapPixels(width, height int, pix []uint8) *Bitmap {
	return &Bitmap{width: width, height: height, pix: pix}
}

// Width returns the width of the bitmap.
func (b *Bitmap) Width() int {
	return b.width
}

// Height returns the height of the bitmap.
func (b *Bitmap) Height() int {
	return b.height
}

// Stride returns the number of bytes per row.
func (b *Bitmap) Stride() int {
	return b.width * 4
}

// Pix returns the raw pixel data (RGBA format).
// The slice aliases the bitmap and must not be modified.
func (b *Bitmap) Pix() []uint8 {
	return b.pix
}

// RGBAAt returns the pixel at (x, y), or transparent black outside the
// bitmap.
func (b *Bitmap) RGBAAt(x, y int) color.RGBA {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return color.RGBA{}
	}
	i := (y*b.width + x) * 4
	return color.RGBA{R: b.pix[i+0], G: b.pix[i+1], B: b.pix[i+2], A: b.pix[i+3]}
}

// At implements the image.Image interface.
func (b *Bitmap) At(x, y int) color.Color {
	return b.RGBAAt(x, y)
}

// Bounds implements the image.Image interface.
func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.width, b.height)
}

// ColorModel implements the image.Image interface.
func (b *Bitmap) ColorModel() color.Model {
	return color.RGBAModel
}

// ToImage copies the bitmap into a new image.RGBA.
func (b *Bitmap) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	copy(img.Pix, b.pix)
	return img
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	pix := make([]uint8, len(b.pix))
	copy(pix, b.pix)
	return &Bitmap{width: b.width, height: b.height, pix: pix}
}

// Equal reports whether both bitmaps have the same size and pixels.
func (b *Bitmap) Equal(o *Bitmap) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.width == o.width && b.height == o.height && bytes.Equal(b.pix, o.pix)
}

// validate checks a caller-supplied bitmap before any device work.
func (b *Bitmap) validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil bitmap", ErrInvalidInput)
	}
	if b.width <= 0 || b.height <= 0 {
		return fmt.Errorf("%w: bitmap size %dx%d", ErrInvalidInput, b.width, b.height)
	}
	if len(b.pix) != b.width*b.height*4 {
		return fmt.Errorf("%w: pixel buffer holds %d bytes, %dx%d needs %d",
			ErrInvalidInput, len(b.pix), b.width, b.height, b.width*b.height*4)
	}
	return nil
}
