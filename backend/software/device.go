package software

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/internal/parallel"
)

// init registers the software backend on package import.
func init() {
	gpucore.Register(gpucore.BackendSoftware, func() (gpucore.Device, error) {
		return New()
	})
}

type texture struct {
	info  gpucore.TextureInfo
	usage gpucore.TextureUsage
	data  []byte
}

type buffer struct {
	usage gpucore.BufferUsage
	data  []byte
}

type program struct {
	name          string
	workgroupSize [2]uint32
	kernel        kernelFunc
}

// Device is a CPU compute device. It is safe for concurrent use.
type Device struct {
	cfg  config
	pool *parallel.WorkerPool
	info gpucore.AdapterInfo

	mu        sync.Mutex
	nextID    uint64
	allocated int64
	textures  map[gpucore.TextureID]*texture
	buffers   map[gpucore.BufferID]*buffer
	programs  map[gpucore.ProgramID]*program

	queue *queue

	closed atomic.Bool
}

// Compile-time interface check.
var _ gpucore.Device = (*Device)(nil)

// New creates a software device.
func New(opts ...Option) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateLimits(cfg.limits); err != nil {
		return nil, err
	}

	pool := parallel.NewWorkerPool(cfg.workers)
	d := &Device{
		cfg:      cfg,
		pool:     pool,
		textures: make(map[gpucore.TextureID]*texture),
		buffers:  make(map[gpucore.BufferID]*buffer),
		programs: make(map[gpucore.ProgramID]*program),
		info: gpucore.AdapterInfo{
			Backend:  gpucore.BackendSoftware,
			Name:     fmt.Sprintf("CPU %s/%s (%d workers)", runtime.GOOS, runtime.GOARCH, pool.Workers()),
			Features: cpuFeatures(),
		},
	}
	d.queue = newQueue(d.execute)

	slogger().Info("software: device created",
		slog.Int("workers", pool.Workers()),
		slog.Int64("memory_limit", cfg.memoryLimit),
		slog.Any("features", d.info.Features))
	return d, nil
}

func validateLimits(l gpucore.Limits) error {
	if l.MaxTextureDimension2D <= 0 || l.MaxWorkgroupInvocations == 0 ||
		l.MaxWorkgroupSize[0] == 0 || l.MaxWorkgroupSize[1] == 0 ||
		l.MaxWorkgroupsPerDimension == 0 {
		return fmt.Errorf("%w: limits %+v", gpucore.ErrInvalidDescriptor, l)
	}
	if a := l.RowPitchAlignment; a > 1 && a&(a-1) != 0 {
		return fmt.Errorf("%w: row pitch alignment %d is not a power of two", gpucore.ErrInvalidDescriptor, a)
	}
	return nil
}

// cpuFeatures reports the SIMD extensions of the host CPU.
func cpuFeatures() []string {
	var f []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE41 {
			f = append(f, "sse4.1")
		}
		if cpu.X86.HasAVX {
			f = append(f, "avx")
		}
		if cpu.X86.HasAVX2 {
			f = append(f, "avx2")
		}
		if cpu.X86.HasFMA {
			f = append(f, "fma")
		}
		if cpu.X86.HasAVX512F {
			f = append(f, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			f = append(f, "neon")
		}
		if cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP {
			f = append(f, "fp16")
		}
	}
	return f
}

// SetLogger sets the logger of the software backend.
// Called by gblur.SetLogger through duck typing.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Info describes the device.
func (d *Device) Info() gpucore.AdapterInfo {
	info := d.info
	info.Features = append([]string(nil), d.info.Features...)
	return info
}

// Limits returns the device limits.
func (d *Device) Limits() gpucore.Limits {
	return d.cfg.limits
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// reserve accounts size bytes against the memory limit. Caller holds d.mu.
func (d *Device) reserve(size int64) error {
	if d.cfg.memoryLimit > 0 && d.allocated+size > d.cfg.memoryLimit {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			gpucore.ErrOutOfMemory, size, d.allocated, d.cfg.memoryLimit)
	}
	d.allocated += size
	return nil
}

// Allocated returns the bytes currently held by textures and buffers.
func (d *Device) Allocated() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// CompileProgram compiles one of the named blur programs.
func (d *Device) CompileProgram(desc *gpucore.ProgramDesc) (gpucore.ProgramID, error) {
	if d.closed.Load() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil program descriptor", gpucore.ErrInvalidDescriptor)
	}
	kernel, ok := kernels[desc.Name]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, desc.Name)
	}

	wg := desc.WorkgroupSize
	lim := d.cfg.limits
	if wg[0] == 0 || wg[1] == 0 ||
		wg[0] > lim.MaxWorkgroupSize[0] || wg[1] > lim.MaxWorkgroupSize[1] ||
		uint64(wg[0])*uint64(wg[1]) > uint64(lim.MaxWorkgroupInvocations) {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: workgroup size %dx%d exceeds limits (max %v, %d invocations)",
			gpucore.ErrCompile, desc.Name, wg[0], wg[1], lim.MaxWorkgroupSize, lim.MaxWorkgroupInvocations)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.ProgramID(d.newID())
	d.programs[id] = &program{name: desc.Name, workgroupSize: wg, kernel: kernel}

	slogger().Debug("software: program compiled",
		slog.String("name", desc.Name),
		slog.String("label", desc.Label),
		slog.Any("workgroup_size", wg))
	return id, nil
}

// DestroyProgram releases a compiled program.
func (d *Device) DestroyProgram(id gpucore.ProgramID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.programs, id)
}

// CreateTexture allocates a 2-D texture with an aligned row pitch.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if d.closed.Load() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil texture descriptor", gpucore.ErrInvalidDescriptor)
	}
	bpt := desc.Format.BytesPerTexel()
	if bpt == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: unsupported format %s", gpucore.ErrInvalidDescriptor, desc.Format)
	}
	maxDim := d.cfg.limits.MaxTextureDimension2D
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > maxDim || desc.Height > maxDim {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %dx%d (max %d)",
			gpucore.ErrInvalidDescriptor, desc.Width, desc.Height, maxDim)
	}

	info := gpucore.TextureInfo{
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
		RowPitch: gpucore.AlignRowPitch(desc.Width*bpt, d.cfg.limits.RowPitchAlignment),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.reserve(int64(info.Size())); err != nil {
		return gpucore.InvalidID, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{
		info:  info,
		usage: desc.Usage,
		data:  make([]byte, info.Size()),
	}
	return id, nil
}

// TextureInfo returns the layout of a texture.
func (d *Device) TextureInfo(id gpucore.TextureID) (gpucore.TextureInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return gpucore.TextureInfo{}, fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	return t.info, nil
}

// WriteTexture uploads pitched texel data.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	d.mu.Lock()
	t, ok := d.textures[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if t.usage&gpucore.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: texture %d lacks CopyDst usage", gpucore.ErrInvalidDescriptor, id)
	}
	if len(data) < t.info.Size() {
		return fmt.Errorf("%w: %d bytes for texture %d, want %d",
			gpucore.ErrInvalidDescriptor, len(data), id, t.info.Size())
	}
	copy(t.data, data[:t.info.Size()])
	return nil
}

// ReadTexture waits for previously submitted work and returns a copy of the
// pitched texture contents.
func (d *Device) ReadTexture(id gpucore.TextureID) ([]byte, gpucore.TextureInfo, error) {
	d.queue.drain()

	d.mu.Lock()
	t, ok := d.textures[id]
	d.mu.Unlock()
	if !ok {
		return nil, gpucore.TextureInfo{}, fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if t.usage&gpucore.TextureUsageCopySrc == 0 {
		return nil, gpucore.TextureInfo{}, fmt.Errorf("%w: texture %d lacks CopySrc usage", gpucore.ErrInvalidDescriptor, id)
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out, t.info, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		d.allocated -= int64(len(t.data))
		delete(d.textures, id)
	}
}

// CreateBuffer allocates a buffer of size bytes.
func (d *Device) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if d.closed.Load() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size %d", gpucore.ErrInvalidDescriptor, size)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.reserve(int64(size)); err != nil {
		return gpucore.InvalidID, fmt.Errorf("buffer: %w", err)
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{usage: usage, data: make([]byte, size)}
	return id, nil
}

// WriteBuffer copies data into the buffer at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	b, ok := d.buffers[id]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, id)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer of %d",
			gpucore.ErrInvalidDescriptor, len(data), offset, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		d.allocated -= int64(len(b.data))
		delete(d.buffers, id)
	}
}

// Submit queues a command buffer and returns its fence.
func (d *Device) Submit(cb *gpucore.CommandBuffer) (gpucore.Fence, error) {
	if cb == nil {
		return 0, fmt.Errorf("%w: nil command buffer", gpucore.ErrInvalidDescriptor)
	}
	if d.closed.Load() {
		return 0, gpucore.ErrDeviceLost
	}
	return d.queue.submit(cb)
}

// Wait blocks until the submission has completed and returns its error.
func (d *Device) Wait(fence gpucore.Fence) error {
	return d.queue.wait(fence)
}

// Destroy stops the queue and releases every resource.
func (d *Device) Destroy() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.queue.close()
	d.pool.Close()

	d.mu.Lock()
	d.textures = make(map[gpucore.TextureID]*texture)
	d.buffers = make(map[gpucore.BufferID]*buffer)
	d.programs = make(map[gpucore.ProgramID]*program)
	d.allocated = 0
	d.mu.Unlock()

	slogger().Debug("software: device destroyed")
}
