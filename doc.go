// Package gblur implements a separable Gaussian blur on a compute device,
// together with an image-filter library baseline for comparison.
//
// # Overview
//
// A blur uploads a bitmap into device texture memory, convolves it with a
// 1-D Gaussian kernel twice (rows, then columns) in compute programs, and
// reads the result back into a new bitmap. The two passes run as separate
// submissions ordered by a fence and an explicit barrier on the
// intermediate texture, so the vertical pass never sees a partially written
// intermediate.
//
// # Quick Start
//
//	ctx, err := gblur.NewContext()
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	src, _ := gblur.FromImage(img)
//	res, err := ctx.BlurGPU(src, 10)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%.2f ms on %s\n", res.Milliseconds(), res.Engine)
//
//	ref, err := gblur.BlurReference(src, 10)
//
// # Backends
//
// Devices come from the gpucore registry. The CPU backend
// (backend/software) is always linked in; the WebGPU backend is opt-in:
//
//	import _ "github.com/gogpu/gblur/backend/wgpu"
//
// NewContext picks the best registered backend unless WithBackend or
// WithDevice says otherwise.
//
// # Kernel
//
// The kernel for radius r has 2r+1 taps, standard deviation sigma = r/3
// (SigmaRatio) and sums to 1. Texels outside the image clamp to the nearest
// edge texel. Radius 0 is the identity.
//
// # Errors
//
// All errors wrap one of ErrUnsupportedEnvironment, ErrResourceExhausted,
// ErrProgramCompilation, ErrInvalidInput or ErrContextClosed; test with
// errors.Is. A call never returns a bitmap together with an error.
package gblur
