// Package software provides a CPU implementation of gpucore.Device.
//
// The device behaves like a discrete compute device: textures live in
// device-owned memory with an aligned row pitch, programs are compiled from
// a fixed table by name, and command buffers execute asynchronously on an
// in-order queue and complete through fences. Work-groups of a dispatch are
// spread across a worker pool; every invocation bounds-checks its global
// position, exactly as a GPU kernel must.
//
// The queue enforces barrier discipline: a dispatch that reads a texture
// written earlier in the same command buffer without an intervening barrier
// fails with gpucore.ErrHazard instead of silently reading stale data.
//
// Importing the package registers the backend under gpucore.BackendSoftware:
//
//	import _ "github.com/gogpu/gblur/backend/software"
package software
