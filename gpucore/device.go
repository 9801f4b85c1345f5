package gpucore

// Device abstracts a compute-capable device and its submission queue.
//
// This interface is the core abstraction that allows the blur executor to
// work with multiple backends. Implementations must be safe for concurrent
// use: several blur invocations may create resources and submit work at the
// same time.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and are never reused
type Device interface {
	// === Capabilities ===

	// Info describes the device.
	Info() AdapterInfo

	// Limits returns the device limits.
	Limits() Limits

	// === Programs ===

	// CompileProgram compiles one of the named blur programs.
	// Returns an error wrapping ErrUnknownProgram or ErrCompile on failure.
	CompileProgram(desc *ProgramDesc) (ProgramID, error)

	// DestroyProgram releases a compiled program.
	DestroyProgram(id ProgramID)

	// === Textures ===

	// CreateTexture allocates a 2-D texture.
	// Returns an error wrapping ErrOutOfMemory if the allocation fails.
	CreateTexture(desc *TextureDesc) (TextureID, error)

	// TextureInfo returns the layout of a texture, including its row pitch.
	TextureInfo(id TextureID) (TextureInfo, error)

	// WriteTexture uploads texel data laid out with the texture's RowPitch.
	// len(data) must be at least TextureInfo.Size().
	WriteTexture(id TextureID, data []byte) error

	// ReadTexture reads the texture back to the host.
	// The returned bytes are laid out with the returned info's RowPitch.
	// Reading waits for all work submitted before the call.
	ReadTexture(id TextureID) ([]byte, TextureInfo, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// === Buffers ===

	// CreateBuffer allocates a device buffer of size bytes.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// WriteBuffer copies data into the buffer at offset.
	WriteBuffer(id BufferID, offset int, data []byte) error

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// === Submission ===

	// Submit queues a command buffer for execution and returns its fence.
	// Submissions execute in submission order.
	Submit(cb *CommandBuffer) (Fence, error)

	// Wait blocks until the submission identified by fence has completed and
	// returns the error it failed with, if any.
	Wait(fence Fence) error

	// Destroy releases the device and every resource still alive.
	Destroy()
}
