// Package wgpu is the GPU backend of gblur, built on the Pure Go WebGPU
// HAL from gogpu/wgpu.
//
// Importing the package registers the backend as gpucore.BackendWGPU:
//
//	import _ "github.com/gogpu/gblur/backend/wgpu"
//
// Textures are pitched storage buffers holding one packed RGBA8 texel per
// u32, and both blur programs are WGSL compute shaders compiled to SPIR-V
// with naga. Every dispatch runs in its own compute pass; WebGPU orders
// storage writes between passes, so barriers recorded by the executor are
// satisfied by construction and only checked for consistency.
//
// Building with the nogpu tag leaves the package empty and nothing is
// registered.
package wgpu
