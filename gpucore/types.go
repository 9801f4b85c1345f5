package gpucore

// Resource IDs
//
// These opaque IDs represent device resources. Each backend maintains a
// mapping between IDs and actual backend resources.

// TextureID is an opaque handle to a device texture.
type TextureID uint64

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// ProgramID is an opaque handle to a compiled compute program.
type ProgramID uint64

// Fence identifies one submission on a device queue.
type Fence uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Program names understood by every backend.
const (
	// ProgramBlurHorizontal convolves each row of the input texture with the
	// weights buffer and writes one texel per invocation.
	ProgramBlurHorizontal = "blur-horizontal"

	// ProgramBlurVertical convolves each column of the input texture.
	ProgramBlurVertical = "blur-vertical"
)

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1
)

// BytesPerTexel returns the texel size of the format, or 0 if unknown.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA8Unorm:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	default:
		return "unknown"
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be read back to the host.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be written from the host.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageStorageRead indicates programs may read the texture.
	TextureUsageStorageRead TextureUsage = 1 << 2

	// TextureUsageStorageWrite indicates programs may write the texture.
	TextureUsageStorageWrite TextureUsage = 1 << 3

	// TextureUsageReadWrite is the usage of every blur texture.
	TextureUsageReadWrite = TextureUsageCopySrc | TextureUsageCopyDst |
		TextureUsageStorageRead | TextureUsageStorageWrite
)

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopyDst indicates the buffer can be written from the host.
	BufferUsageCopyDst BufferUsage = 1 << 0

	// BufferUsageStorage indicates the buffer can be bound to programs.
	BufferUsageStorage BufferUsage = 1 << 1
)

// TextureDesc describes a texture to create.
type TextureDesc struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the texture dimensions in texels.
	Width, Height int

	// Format is the texel format.
	Format TextureFormat

	// Usage is a bitmask of TextureUsage flags.
	Usage TextureUsage
}

// TextureInfo describes a created texture as laid out by the device.
type TextureInfo struct {
	Width  int
	Height int
	Format TextureFormat

	// RowPitch is the number of bytes between the starts of consecutive
	// rows. It is at least Width*BytesPerTexel and may be larger because of
	// device alignment rules.
	RowPitch int
}

// Size returns the number of bytes of a pitched upload or readback.
func (i TextureInfo) Size() int {
	return i.RowPitch * i.Height
}

// ProgramDesc describes a compute program to compile.
type ProgramDesc struct {
	// Label is an optional debug label.
	Label string

	// Name selects the program, see ProgramBlurHorizontal and
	// ProgramBlurVertical.
	Name string

	// WorkgroupSize is the number of invocations per work-group in X and Y.
	WorkgroupSize [2]uint32
}

// KernelArgs are the bindings of a blur program dispatch.
type KernelArgs struct {
	// Input is read by the program.
	Input TextureID

	// Output is written by the program, one texel per invocation.
	Output TextureID

	// Weights holds 2*Radius+1 little-endian float32 values.
	Weights BufferID

	// Radius is the kernel radius in texels.
	Radius uint32
}

// Limits describes device limits relevant to the blur pipeline.
type Limits struct {
	// MaxTextureDimension2D is the maximum width or height of a texture.
	MaxTextureDimension2D int

	// MaxWorkgroupSize is the maximum work-group size in X and Y.
	MaxWorkgroupSize [2]uint32

	// MaxWorkgroupInvocations is the maximum product of work-group sizes.
	MaxWorkgroupInvocations uint32

	// MaxWorkgroupsPerDimension is the maximum grid size per dispatch axis.
	MaxWorkgroupsPerDimension uint32

	// RowPitchAlignment is the byte alignment of texture rows.
	RowPitchAlignment int
}

// DefaultLimits returns limits every backend supports.
func DefaultLimits() Limits {
	return Limits{
		MaxTextureDimension2D:     8192,
		MaxWorkgroupSize:          [2]uint32{256, 256},
		MaxWorkgroupInvocations:   256,
		MaxWorkgroupsPerDimension: 65535,
		RowPitchAlignment:         256,
	}
}

// AdapterInfo describes the device behind a backend.
type AdapterInfo struct {
	// Backend is the registry name of the backend.
	Backend string

	// Name is the human readable device name.
	Name string

	// Features lists backend specific capabilities (CPU SIMD extensions for
	// the software backend, adapter type for the wgpu backend).
	Features []string
}

// AlignRowPitch rounds bytesPerRow up to a multiple of alignment.
// Alignment must be a power of two; values <= 1 return bytesPerRow unchanged.
func AlignRowPitch(bytesPerRow, alignment int) int {
	if alignment <= 1 {
		return bytesPerRow
	}
	return (bytesPerRow + alignment - 1) &^ (alignment - 1)
}

// WorkgroupCount returns the number of work-groups needed to cover n
// invocations with groups of size.
func WorkgroupCount(n int, size uint32) uint32 {
	if n <= 0 || size == 0 {
		return 0
	}
	return (uint32(n) + size - 1) / size //nolint:gosec // n checked positive
}
