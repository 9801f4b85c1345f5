package gpucore

import "testing"

func TestAlignRowPitch(t *testing.T) {
	tests := []struct {
		bytes, align, want int
	}{
		{4, 256, 256},
		{256, 256, 256},
		{260, 256, 512},
		{2000, 256, 2048},
		{100, 1, 100},
		{100, 0, 100},
		{0, 256, 0},
	}
	for _, tt := range tests {
		if got := AlignRowPitch(tt.bytes, tt.align); got != tt.want {
			t.Errorf("AlignRowPitch(%d, %d) = %d, want %d", tt.bytes, tt.align, got, tt.want)
		}
	}
}

func TestWorkgroupCount(t *testing.T) {
	tests := []struct {
		n    int
		size uint32
		want uint32
	}{
		{1, 16, 1},
		{16, 16, 1},
		{17, 16, 2},
		{1000, 16, 63},
		{0, 16, 0},
		{-3, 16, 0},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := WorkgroupCount(tt.n, tt.size); got != tt.want {
			t.Errorf("WorkgroupCount(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestTextureFormat(t *testing.T) {
	if TextureFormatRGBA8Unorm.BytesPerTexel() != 4 {
		t.Errorf("BytesPerTexel() = %d, want 4", TextureFormatRGBA8Unorm.BytesPerTexel())
	}
	if TextureFormat(0).BytesPerTexel() != 0 {
		t.Error("unknown format should have 0 bytes per texel")
	}
	if TextureFormatRGBA8Unorm.String() != "rgba8unorm" {
		t.Errorf("String() = %q", TextureFormatRGBA8Unorm.String())
	}
}

func TestTextureInfo_Size(t *testing.T) {
	info := TextureInfo{Width: 10, Height: 3, Format: TextureFormatRGBA8Unorm, RowPitch: 256}
	if info.Size() != 768 {
		t.Errorf("Size() = %d, want 768", info.Size())
	}
}

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if l.RowPitchAlignment != 256 {
		t.Errorf("RowPitchAlignment = %d, want 256", l.RowPitchAlignment)
	}
	if l.MaxWorkgroupSize[0]*l.MaxWorkgroupSize[1] < l.MaxWorkgroupInvocations {
		t.Error("MaxWorkgroupInvocations exceeds MaxWorkgroupSize product")
	}
}
