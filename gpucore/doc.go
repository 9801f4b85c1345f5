// Package gpucore provides the backend-agnostic compute device abstraction
// used by the gblur separable blur pipeline.
//
// This package defines the [Device] interface, which abstracts over the
// compute backends able to run the blur programs:
//   - backend/wgpu (Pure Go WebGPU via gogpu/wgpu HAL, Vulkan)
//   - backend/software (CPU device with GPU-style dispatch geometry)
//
// # Architecture
//
// The blur executor is written once against [Device]. Backends only have to
// provide textures with a reported row pitch, storage buffers, the two named
// blur programs and an in-order submission queue with fences.
//
//	               +-----------------+
//	               |  gblur.Context  |
//	               | bridge+executor |
//	               +--------+--------+
//	                        |
//	                 gpucore.Device
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  backend/wgpu   |          | backend/software|
//	|  (hal.Device)   |          |  (worker pool)  |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// Resources are referenced through opaque IDs ([TextureID], [BufferID],
// [ProgramID]). Destroying a resource while a submission that uses it is
// still in flight is undefined behavior; callers wait on the submission
// fence first.
//
// # Ordering
//
// Commands of one [CommandBuffer] execute in order on the device queue, and
// submissions execute in submission order. A dispatch that reads a texture
// written by an earlier dispatch of the same command buffer must be
// preceded by a [CommandEncoder.Barrier] on that texture; backends that
// track hazards reject the command buffer otherwise with [ErrHazard].
//
// # Usage Example
//
//	dev, err := gpucore.Open("software")
//	if err != nil {
//	    return err
//	}
//	defer dev.Destroy()
//
//	enc := gpucore.NewCommandEncoder("blur")
//	enc.Dispatch(gpucore.Dispatch{Program: prog, Args: args, Groups: groups})
//	fence, err := dev.Submit(enc.Finish())
//	if err != nil {
//	    return err
//	}
//	err = dev.Wait(fence)
package gpucore
