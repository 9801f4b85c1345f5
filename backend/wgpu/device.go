//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gblur/gpucore"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// init registers the GPU backend on package import.
func init() {
	gpucore.Register(gpucore.BackendWGPU, func() (gpucore.Device, error) {
		return New()
	})
}

type texture struct {
	info  gpucore.TextureInfo
	usage gpucore.TextureUsage
	buf   hal.Buffer
	size  uint64
}

type buffer struct {
	buf  hal.Buffer
	size uint64
}

// Device is a gpucore.Device backed by a wgpu HAL device.
// It is safe for concurrent use.
type Device struct {
	cfg    config
	info   gpucore.AdapterInfo
	limits gpucore.Limits

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool // device and queue belong to a provider

	mu       sync.Mutex
	nextID   uint64
	textures map[gpucore.TextureID]*texture
	buffers  map[gpucore.BufferID]*buffer
	programs map[gpucore.ProgramID]*program
	inflight map[gpucore.Fence]*submission
	issued   gpucore.Fence
	closed   bool
}

// Compile-time interface check.
var _ gpucore.Device = (*Device)(nil)

// New opens the first discrete or integrated adapter of the configured HAL
// backend. It returns an error wrapping gpucore.ErrNoDevice when no adapter
// is available.
func New(opts ...Option) (*Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	backend, ok := hal.GetBackend(cfg.api)
	if !ok {
		return nil, fmt.Errorf("%w: HAL backend %v not available", gpucore.ErrNoDevice, cfg.api)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", gpucore.ErrNoDevice, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", gpucore.ErrNoDevice)
	}
	selected := selectAdapter(adapters, cfg.preferLow)

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %w", gpucore.ErrNoDevice, err)
	}

	d := newDevice(cfg, openDev.Device, openDev.Queue)
	d.instance = instance
	d.info.Name = selected.Info.Name
	d.info.Features = []string{fmt.Sprint(selected.Info.DeviceType), fmt.Sprint(cfg.api)}

	slogger().Info("wgpu: device created",
		slog.String("adapter", selected.Info.Name),
		slog.Any("type", selected.Info.DeviceType))
	return d, nil
}

// NewFromProvider wraps a device shared by a host application. The provider
// must also expose HalDevice() and HalQueue() returning hal.Device and
// hal.Queue. The shared device is not destroyed by Destroy.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil device provider", gpucore.ErrNoDevice)
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", gpucore.ErrNoDevice)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", gpucore.ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", gpucore.ErrNoDevice)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	d := newDevice(cfg, device, queue)
	d.external = true
	d.info.Name = "shared device"
	slogger().Info("wgpu: using shared device")
	return d, nil
}

func newDevice(cfg config, device hal.Device, queue hal.Queue) *Device {
	return &Device{
		cfg:      cfg,
		info:     gpucore.AdapterInfo{Backend: gpucore.BackendWGPU},
		limits:   gpucore.DefaultLimits(),
		device:   device,
		queue:    queue,
		textures: make(map[gpucore.TextureID]*texture),
		buffers:  make(map[gpucore.BufferID]*buffer),
		programs: make(map[gpucore.ProgramID]*program),
		inflight: make(map[gpucore.Fence]*submission),
	}
}

func selectAdapter(adapters []hal.ExposedAdapter, preferLow bool) *hal.ExposedAdapter {
	first, second := gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU
	if preferLow {
		first, second = second, first
	}
	for _, want := range []gputypes.DeviceType{first, second} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// SetLogger sets the logger of the GPU backend.
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
	return d.limits
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// createBuffer allocates a HAL buffer. Caller holds d.mu.
func (d *Device) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%d bytes): %w", gpucore.ErrOutOfMemory, label, size, err)
	}
	return buf, nil
}

// CreateTexture allocates a pitched storage buffer holding the texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("%w: nil texture descriptor", gpucore.ErrInvalidDescriptor)
	}
	bpt := desc.Format.BytesPerTexel()
	if bpt == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: unsupported format %s", gpucore.ErrInvalidDescriptor, desc.Format)
	}
	maxDim := d.limits.MaxTextureDimension2D
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > maxDim || desc.Height > maxDim {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %dx%d (max %d)",
			gpucore.ErrInvalidDescriptor, desc.Width, desc.Height, maxDim)
	}
	info := gpucore.TextureInfo{
		Width:    desc.Width,
		Height:   desc.Height,
		Format:   desc.Format,
		RowPitch: gpucore.AlignRowPitch(desc.Width*bpt, d.limits.RowPitchAlignment),
	}
	size := uint64(info.Size()) //nolint:gosec // dimensions bounded by limits
	if size > maxStorageBindingSize {
		return gpucore.InvalidID, fmt.Errorf("%w: texture %q needs %d bytes, storage bindings hold %d",
			gpucore.ErrOutOfMemory, desc.Label, size, maxStorageBindingSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	buf, err := d.createBuffer(desc.Label, size,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{info: info, usage: desc.Usage, buf: buf, size: size}
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

// WriteTexture uploads pitched texel data through the queue.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if t.usage&gpucore.TextureUsageCopyDst == 0 {
		return fmt.Errorf("%w: texture %d lacks CopyDst usage", gpucore.ErrInvalidDescriptor, id)
	}
	if uint64(len(data)) < t.size {
		return fmt.Errorf("%w: %d bytes for texture %d, want %d",
			gpucore.ErrInvalidDescriptor, len(data), id, t.size)
	}
	d.queue.WriteBuffer(t.buf, 0, data[:t.size])
	return nil
}

// ReadTexture copies the texture into a staging buffer after all previously
// submitted work and reads it back.
func (d *Device) ReadTexture(id gpucore.TextureID) ([]byte, gpucore.TextureInfo, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, gpucore.TextureInfo{}, gpucore.ErrDeviceLost
	}
	t, ok := d.textures[id]
	if !ok {
		d.mu.Unlock()
		return nil, gpucore.TextureInfo{}, fmt.Errorf("%w: texture %d", gpucore.ErrInvalidResource, id)
	}
	if t.usage&gpucore.TextureUsageCopySrc == 0 {
		d.mu.Unlock()
		return nil, gpucore.TextureInfo{}, fmt.Errorf("%w: texture %d lacks CopySrc usage", gpucore.ErrInvalidDescriptor, id)
	}
	staging, err := d.createBuffer("gblur staging", t.size,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.mu.Unlock()
		return nil, gpucore.TextureInfo{}, err
	}
	defer d.releaseBuffer(staging)

	s, err := d.encodeCopy(t, staging)
	d.mu.Unlock()
	if err != nil {
		return nil, gpucore.TextureInfo{}, err
	}
	if err := d.waitSubmission(s); err != nil {
		return nil, gpucore.TextureInfo{}, err
	}

	out := make([]byte, t.size)
	if err := d.queue.ReadBuffer(staging, 0, out); err != nil {
		return nil, gpucore.TextureInfo{}, fmt.Errorf("readback: %w", err)
	}
	return out, t.info, nil
}

func (d *Device) releaseBuffer(buf hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.DestroyBuffer(buf)
	}
}

// encodeCopy submits a copy of t into staging. Caller holds d.mu.
func (d *Device) encodeCopy(t *texture, staging hal.Buffer) (*submission, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gblur_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gblur_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(t.buf, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: t.size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	s := &submission{cmdBuf: cmdBuf}
	if err := d.submitLocked(s); err != nil {
		d.freeSubmission(s)
		return nil, err
	}
	return s, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		d.device.DestroyBuffer(t.buf)
		delete(d.textures, id)
	}
}

// CreateBuffer allocates a storage buffer of size bytes.
func (d *Device) CreateBuffer(size int, _ gpucore.BufferUsage) (gpucore.BufferID, error) {
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: buffer size %d", gpucore.ErrInvalidDescriptor, size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	// Storage bindings must be a multiple of 4 bytes.
	aligned := uint64(gpucore.AlignRowPitch(size, 4)) //nolint:gosec // size checked positive
	buf, err := d.createBuffer("gblur buffer", aligned,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{buf: buf, size: uint64(size)} //nolint:gosec // size checked positive
	return id, nil
}

// WriteBuffer copies data into the buffer at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpucore.ErrInvalidResource, id)
	}
	if offset < 0 || uint64(offset+len(data)) > b.size { //nolint:gosec // offset checked non-negative
		return fmt.Errorf("%w: write of %d bytes at %d overflows buffer of %d",
			gpucore.ErrInvalidDescriptor, len(data), offset, b.size)
	}
	d.queue.WriteBuffer(b.buf, uint64(offset), data) //nolint:gosec // offset checked non-negative
	return nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
}

// Destroy waits for in-flight submissions and releases every resource.
// A device obtained from NewFromProvider leaves the shared device alive.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := make([]*submission, 0, len(d.inflight))
	for _, s := range d.inflight {
		pending = append(pending, s)
	}
	d.inflight = make(map[gpucore.Fence]*submission)
	d.mu.Unlock()

	var errs []error
	for _, s := range pending {
		if err := d.waitSubmission(s); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slogger().Warn("wgpu: pending work failed during destroy", slog.Any("err", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.textures {
		d.device.DestroyBuffer(t.buf)
		delete(d.textures, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.buf)
		delete(d.buffers, id)
	}
	for id, p := range d.programs {
		p.destroy(d.device)
		delete(d.programs, id)
	}
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	slogger().Debug("wgpu: device destroyed")
}
