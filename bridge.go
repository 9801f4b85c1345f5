package gblur

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gblur/gpucore"
)

// newTexture allocates one RGBA8 blur texture.
func newTexture(dev gpucore.Device, width, height int, label string) (gpucore.TextureID, error) {
	if maxDim := dev.Limits().MaxTextureDimension2D; width > maxDim || height > maxDim {
		return gpucore.InvalidID, fmt.Errorf("%s: %w: %dx%d exceeds max texture dimension %d",
			label, ErrResourceExhausted, width, height, maxDim)
	}
	id, err := dev.CreateTexture(&gpucore.TextureDesc{
		Label:  label,
		Width:  width,
		Height: height,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageReadWrite,
	})
	if err != nil {
		return gpucore.InvalidID, mapDeviceError("create "+label, err)
	}
	return id, nil
}

// encodeTexture uploads src into a new device texture, laying rows out with
// the row pitch the device chose.
func encodeTexture(dev gpucore.Device, src *Bitmap) (gpucore.TextureID, error) {
	if err := src.validate(); err != nil {
		return gpucore.InvalidID, err
	}
	id, err := newTexture(dev, src.width, src.height, "input")
	if err != nil {
		return gpucore.InvalidID, err
	}

	info, err := dev.TextureInfo(id)
	if err != nil {
		dev.DestroyTexture(id)
		return gpucore.InvalidID, mapDeviceError("input layout", err)
	}
	row := src.Stride()
	if info.RowPitch < row {
		dev.DestroyTexture(id)
		return gpucore.InvalidID, fmt.Errorf("input layout: row pitch %d shorter than row %d", info.RowPitch, row)
	}

	data := src.pix
	if info.RowPitch != row {
		data = make([]byte, info.Size())
		for y := 0; y < src.height; y++ {
			copy(data[y*info.RowPitch:y*info.RowPitch+row], src.pix[y*row:(y+1)*row])
		}
	}

	Logger().Debug("gblur: upload",
		slog.Int("width", src.width),
		slog.Int("height", src.height),
		slog.Int("row_bytes", row),
		slog.Int("row_pitch", info.RowPitch))

	if err := dev.WriteTexture(id, data); err != nil {
		dev.DestroyTexture(id)
		return gpucore.InvalidID, mapDeviceError("upload", err)
	}
	return id, nil
}

// decodeTexture reads a texture back and strips row padding into a new
// bitmap.
func decodeTexture(dev gpucore.Device, id gpucore.TextureID) (*Bitmap, error) {
	data, info, err := dev.ReadTexture(id)
	if err != nil {
		return nil, mapDeviceError("readback", err)
	}
	row := info.Width * 4
	if info.RowPitch < row || len(data) < info.RowPitch*(info.Height-1)+row {
		return nil, fmt.Errorf("readback: %d bytes with pitch %d for %dx%d",
			len(data), info.RowPitch, info.Width, info.Height)
	}

	if info.RowPitch == row {
		return wrapPixels(info.Width, info.Height, data[:row*info.Height]), nil
	}
	pix := make([]byte, row*info.Height)
	for y := 0; y < info.Height; y++ {
		copy(pix[y*row:(y+1)*row], data[y*info.RowPitch:y*info.RowPitch+row])
	}
	return wrapPixels(info.Width, info.Height, pix), nil
}
