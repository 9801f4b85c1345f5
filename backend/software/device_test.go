package software

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/internal/filter"
)

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	d, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

// testPix returns a deterministic, non-trivial RGBA image.
func testPix(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i+0] = uint8((x * 255) / max(w-1, 1))
			pix[i+1] = uint8((y * 255) / max(h-1, 1))
			if (x/3+y/3)%2 == 0 {
				pix[i+2] = 255
			}
			pix[i+3] = uint8(128 + (x*7+y*13)%128)
		}
	}
	return pix
}

func createTexture(t *testing.T, d *Device, w, h int) gpucore.TextureID {
	t.Helper()
	id, err := d.CreateTexture(&gpucore.TextureDesc{
		Label:  "test",
		Width:  w,
		Height: h,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageReadWrite,
	})
	if err != nil {
		t.Fatalf("CreateTexture(%dx%d) error = %v", w, h, err)
	}
	return id
}

func upload(t *testing.T, d *Device, id gpucore.TextureID, pix []byte) {
	t.Helper()
	info, err := d.TextureInfo(id)
	if err != nil {
		t.Fatalf("TextureInfo() error = %v", err)
	}
	staging := make([]byte, info.Size())
	row := info.Width * 4
	for y := 0; y < info.Height; y++ {
		copy(staging[y*info.RowPitch:], pix[y*row:(y+1)*row])
	}
	if err := d.WriteTexture(id, staging); err != nil {
		t.Fatalf("WriteTexture() error = %v", err)
	}
}

func download(t *testing.T, d *Device, id gpucore.TextureID) []byte {
	t.Helper()
	data, info, err := d.ReadTexture(id)
	if err != nil {
		t.Fatalf("ReadTexture() error = %v", err)
	}
	row := info.Width * 4
	out := make([]byte, row*info.Height)
	for y := 0; y < info.Height; y++ {
		copy(out[y*row:], data[y*info.RowPitch:y*info.RowPitch+row])
	}
	return out
}

func uploadWeights(t *testing.T, d *Device, weights []float32) gpucore.BufferID {
	t.Helper()
	id, err := d.CreateBuffer(len(weights)*4, gpucore.BufferUsageStorage|gpucore.BufferUsageCopyDst)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	raw := make([]byte, len(weights)*4)
	for i, w := range weights {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(w))
	}
	if err := d.WriteBuffer(id, 0, raw); err != nil {
		t.Fatalf("WriteBuffer() error = %v", err)
	}
	return id
}

func compile(t *testing.T, d *Device, name string, wg [2]uint32) gpucore.ProgramID {
	t.Helper()
	id, err := d.CompileProgram(&gpucore.ProgramDesc{Label: name, Name: name, WorkgroupSize: wg})
	if err != nil {
		t.Fatalf("CompileProgram(%s) error = %v", name, err)
	}
	return id
}

// runBlur performs both passes on d and returns the tightly packed result.
func runBlur(t *testing.T, d *Device, pix []byte, w, h, radius int, wg [2]uint32) []byte {
	t.Helper()
	weights, err := filter.GaussianWeights(radius)
	if err != nil {
		t.Fatal(err)
	}
	hp := compile(t, d, gpucore.ProgramBlurHorizontal, wg)
	vp := compile(t, d, gpucore.ProgramBlurVertical, wg)
	in := createTexture(t, d, w, h)
	mid := createTexture(t, d, w, h)
	out := createTexture(t, d, w, h)
	wb := uploadWeights(t, d, weights)
	upload(t, d, in, pix)

	groups := [2]uint32{gpucore.WorkgroupCount(w, wg[0]), gpucore.WorkgroupCount(h, wg[1])}
	enc := gpucore.NewCommandEncoder("blur")
	enc.Dispatch(gpucore.Dispatch{Program: hp, Groups: groups,
		Args: gpucore.KernelArgs{Input: in, Output: mid, Weights: wb, Radius: uint32(radius)}})
	enc.Barrier(mid)
	enc.Dispatch(gpucore.Dispatch{Program: vp, Groups: groups,
		Args: gpucore.KernelArgs{Input: mid, Output: out, Weights: wb, Radius: uint32(radius)}})

	fence, err := d.Submit(enc.Finish())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := d.Wait(fence); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return download(t, d, out)
}

func TestNew_Info(t *testing.T) {
	d := newTestDevice(t)

	info := d.Info()
	if info.Backend != gpucore.BackendSoftware {
		t.Errorf("Backend = %q, want %q", info.Backend, gpucore.BackendSoftware)
	}
	if info.Name == "" {
		t.Error("Name is empty")
	}
	if d.Limits() != gpucore.DefaultLimits() {
		t.Errorf("Limits() = %+v, want defaults", d.Limits())
	}
}

func TestNew_InvalidLimits(t *testing.T) {
	lim := gpucore.DefaultLimits()
	lim.RowPitchAlignment = 100
	if _, err := New(WithLimits(lim)); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
		t.Errorf("New() error = %v, want ErrInvalidDescriptor", err)
	}
}

func TestRegistered(t *testing.T) {
	if !gpucore.IsRegistered(gpucore.BackendSoftware) {
		t.Fatal("software backend not registered")
	}
	dev, err := gpucore.Open(gpucore.BackendSoftware)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dev.Destroy()
}

func TestCreateTexture_RowPitch(t *testing.T) {
	d := newTestDevice(t)

	tests := []struct {
		width     int
		wantPitch int
	}{
		{1, 256},
		{64, 256},
		{65, 512},
		{100, 512},
		{500, 2048},
	}
	for _, tt := range tests {
		id := createTexture(t, d, tt.width, 3)
		info, err := d.TextureInfo(id)
		if err != nil {
			t.Fatal(err)
		}
		if info.RowPitch != tt.wantPitch {
			t.Errorf("width %d: RowPitch = %d, want %d", tt.width, info.RowPitch, tt.wantPitch)
		}
		if info.Size() != tt.wantPitch*3 {
			t.Errorf("width %d: Size() = %d, want %d", tt.width, info.Size(), tt.wantPitch*3)
		}
	}
}

func TestCreateTexture_Invalid(t *testing.T) {
	d := newTestDevice(t)

	tests := []struct {
		name string
		desc *gpucore.TextureDesc
	}{
		{"nil", nil},
		{"zero width", &gpucore.TextureDesc{Width: 0, Height: 4, Format: gpucore.TextureFormatRGBA8Unorm}},
		{"negative height", &gpucore.TextureDesc{Width: 4, Height: -1, Format: gpucore.TextureFormatRGBA8Unorm}},
		{"too large", &gpucore.TextureDesc{Width: 8193, Height: 4, Format: gpucore.TextureFormatRGBA8Unorm}},
		{"unknown format", &gpucore.TextureDesc{Width: 4, Height: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.CreateTexture(tt.desc); !errors.Is(err, gpucore.ErrInvalidDescriptor) {
				t.Errorf("CreateTexture() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestMemoryLimit(t *testing.T) {
	d := newTestDevice(t, WithMemoryLimit(256*10))

	first := createTexture(t, d, 10, 8)
	if got := d.Allocated(); got != 256*8 {
		t.Errorf("Allocated() = %d, want %d", got, 256*8)
	}

	_, err := d.CreateTexture(&gpucore.TextureDesc{
		Width: 10, Height: 8, Format: gpucore.TextureFormatRGBA8Unorm, Usage: gpucore.TextureUsageReadWrite,
	})
	if !errors.Is(err, gpucore.ErrOutOfMemory) {
		t.Fatalf("second CreateTexture() error = %v, want ErrOutOfMemory", err)
	}
	if _, err := d.CreateBuffer(1024, gpucore.BufferUsageStorage); !errors.Is(err, gpucore.ErrOutOfMemory) {
		t.Errorf("CreateBuffer() error = %v, want ErrOutOfMemory", err)
	}

	d.DestroyTexture(first)
	if got := d.Allocated(); got != 0 {
		t.Errorf("Allocated() after destroy = %d, want 0", got)
	}
	createTexture(t, d, 10, 8)
}

func TestCompileProgram(t *testing.T) {
	d := newTestDevice(t)

	tests := []struct {
		name string
		desc *gpucore.ProgramDesc
		want error
	}{
		{"horizontal", &gpucore.ProgramDesc{Name: gpucore.ProgramBlurHorizontal, WorkgroupSize: [2]uint32{16, 16}}, nil},
		{"vertical", &gpucore.ProgramDesc{Name: gpucore.ProgramBlurVertical, WorkgroupSize: [2]uint32{8, 32}}, nil},
		{"unknown", &gpucore.ProgramDesc{Name: "sharpen", WorkgroupSize: [2]uint32{16, 16}}, gpucore.ErrUnknownProgram},
		{"too many invocations", &gpucore.ProgramDesc{Name: gpucore.ProgramBlurHorizontal, WorkgroupSize: [2]uint32{64, 64}}, gpucore.ErrCompile},
		{"zero size", &gpucore.ProgramDesc{Name: gpucore.ProgramBlurVertical, WorkgroupSize: [2]uint32{0, 16}}, gpucore.ErrCompile},
		{"nil", nil, gpucore.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CompileProgram(tt.desc)
			if !errors.Is(err, tt.want) {
				t.Errorf("CompileProgram() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBlur_MatchesHostModel(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		radius int
		wg     [2]uint32
	}{
		{"aligned", 32, 32, 3, [2]uint32{16, 16}},
		{"ragged edges", 37, 21, 4, [2]uint32{16, 16}},
		{"one pixel", 1, 1, 5, [2]uint32{16, 16}},
		{"single row", 50, 1, 2, [2]uint32{8, 8}},
		{"radius larger than image", 6, 5, 20, [2]uint32{4, 4}},
		{"tall workgroups", 33, 70, 7, [2]uint32{1, 64}},
		{"identity", 17, 9, 0, [2]uint32{16, 16}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t)
			pix := testPix(tt.w, tt.h)
			weights, _ := filter.GaussianWeights(tt.radius)

			got := runBlur(t, d, pix, tt.w, tt.h, tt.radius, tt.wg)
			want := filter.Blur(pix, tt.w, tt.h, weights)
			if !bytes.Equal(got, want) {
				t.Errorf("device output differs from host model")
			}
		})
	}
}

func TestBlur_IdentityIsExact(t *testing.T) {
	d := newTestDevice(t)
	pix := testPix(23, 11)
	got := runBlur(t, d, pix, 23, 11, 0, [2]uint32{16, 16})
	if !bytes.Equal(got, pix) {
		t.Error("radius 0 changed the image")
	}
}

func TestSubmit_HazardWithoutBarrier(t *testing.T) {
	d := newTestDevice(t)
	wg := [2]uint32{16, 16}
	hp := compile(t, d, gpucore.ProgramBlurHorizontal, wg)
	vp := compile(t, d, gpucore.ProgramBlurVertical, wg)
	in := createTexture(t, d, 8, 8)
	mid := createTexture(t, d, 8, 8)
	out := createTexture(t, d, 8, 8)
	wb := uploadWeights(t, d, []float32{0.25, 0.5, 0.25})
	groups := [2]uint32{1, 1}

	enc := gpucore.NewCommandEncoder("no-barrier")
	enc.Dispatch(gpucore.Dispatch{Program: hp, Groups: groups,
		Args: gpucore.KernelArgs{Input: in, Output: mid, Weights: wb, Radius: 1}})
	enc.Dispatch(gpucore.Dispatch{Program: vp, Groups: groups,
		Args: gpucore.KernelArgs{Input: mid, Output: out, Weights: wb, Radius: 1}})

	fence, err := d.Submit(enc.Finish())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := d.Wait(fence); !errors.Is(err, gpucore.ErrHazard) {
		t.Errorf("Wait() error = %v, want ErrHazard", err)
	}

	// A barrier on an unrelated texture does not help.
	enc = gpucore.NewCommandEncoder("wrong-barrier")
	enc.Dispatch(gpucore.Dispatch{Program: hp, Groups: groups,
		Args: gpucore.KernelArgs{Input: in, Output: mid, Weights: wb, Radius: 1}})
	enc.Barrier(out)
	enc.Dispatch(gpucore.Dispatch{Program: vp, Groups: groups,
		Args: gpucore.KernelArgs{Input: mid, Output: out, Weights: wb, Radius: 1}})
	fence, _ = d.Submit(enc.Finish())
	if err := d.Wait(fence); !errors.Is(err, gpucore.ErrHazard) {
		t.Errorf("Wait() error = %v, want ErrHazard", err)
	}
}

func TestSubmit_SeparateSubmissionsNeedNoBarrier(t *testing.T) {
	d := newTestDevice(t)
	wg := [2]uint32{16, 16}
	hp := compile(t, d, gpucore.ProgramBlurHorizontal, wg)
	in := createTexture(t, d, 8, 8)
	mid := createTexture(t, d, 8, 8)
	out := createTexture(t, d, 8, 8)
	wb := uploadWeights(t, d, []float32{1})

	for _, args := range []gpucore.KernelArgs{
		{Input: in, Output: mid, Weights: wb},
		{Input: mid, Output: out, Weights: wb},
	} {
		enc := gpucore.NewCommandEncoder("pass")
		enc.Dispatch(gpucore.Dispatch{Program: hp, Groups: [2]uint32{1, 1}, Args: args})
		fence, err := d.Submit(enc.Finish())
		if err != nil {
			t.Fatal(err)
		}
		if err := d.Wait(fence); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
}

func TestSubmit_InvalidDispatch(t *testing.T) {
	d := newTestDevice(t)
	hp := compile(t, d, gpucore.ProgramBlurHorizontal, [2]uint32{16, 16})
	in := createTexture(t, d, 8, 8)
	small := createTexture(t, d, 4, 4)
	wb := uploadWeights(t, d, []float32{1})

	tests := []struct {
		name string
		disp gpucore.Dispatch
		want error
	}{
		{"unknown program", gpucore.Dispatch{Program: 999, Args: gpucore.KernelArgs{Input: in, Output: small, Weights: wb}}, gpucore.ErrInvalidResource},
		{"size mismatch", gpucore.Dispatch{Program: hp, Args: gpucore.KernelArgs{Input: in, Output: small, Weights: wb}}, gpucore.ErrInvalidDescriptor},
		{"in place", gpucore.Dispatch{Program: hp, Args: gpucore.KernelArgs{Input: in, Output: in, Weights: wb}}, gpucore.ErrInvalidDescriptor},
		{"short weights", gpucore.Dispatch{Program: hp, Args: gpucore.KernelArgs{Input: small, Output: createTexture(t, d, 4, 4), Weights: wb, Radius: 3}}, gpucore.ErrInvalidDescriptor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := gpucore.NewCommandEncoder(tt.name)
			tt.disp.Groups = [2]uint32{1, 1}
			enc.Dispatch(tt.disp)
			fence, err := d.Submit(enc.Finish())
			if err != nil {
				t.Fatal(err)
			}
			if err := d.Wait(fence); !errors.Is(err, tt.want) {
				t.Errorf("Wait() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWait_UnknownFence(t *testing.T) {
	d := newTestDevice(t)
	if err := d.Wait(42); !errors.Is(err, gpucore.ErrInvalidResource) {
		t.Errorf("Wait(42) error = %v, want ErrInvalidResource", err)
	}
}

func TestDestroy(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatal(err)
	}
	d.Destroy()
	d.Destroy()

	if _, err := d.Submit(gpucore.NewCommandEncoder("late").Finish()); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("Submit() after Destroy error = %v, want ErrDeviceLost", err)
	}
	if _, err := d.CreateTexture(&gpucore.TextureDesc{Width: 1, Height: 1, Format: gpucore.TextureFormatRGBA8Unorm}); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateTexture() after Destroy error = %v, want ErrDeviceLost", err)
	}
}

func TestConcurrentBlurs(t *testing.T) {
	d := newTestDevice(t)
	const w, h = 40, 30
	pix := testPix(w, h)
	weights, _ := filter.GaussianWeights(3)
	want := filter.Blur(pix, w, h, weights)

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := runBlur(t, d, pix, w, h, 3, [2]uint32{16, 16})
			if !bytes.Equal(got, want) {
				errs <- "concurrent blur differs from host model"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
