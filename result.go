package gblur

import (
	"fmt"
	"time"
)

// Path identifies which implementation produced a BlurResult.
type Path uint8

const (
	// PathCompute is the separable blur on a compute device.
	PathCompute Path = iota + 1

	// PathReference is the image-filter library baseline.
	PathReference
)

// String returns the path name.
func (p Path) String() string {
	switch p {
	case PathCompute:
		return "compute"
	case PathReference:
		return "reference"
	default:
		return fmt.Sprintf("Path(%d)", p)
	}
}

// StageTiming records one stage of a compute blur.
type StageTiming struct {
	Name string

	// Start is the offset from the beginning of the call.
	Start time.Duration

	Duration time.Duration
}

// BlurResult is the outcome of a blur call.
type BlurResult struct {
	// Bitmap has the same dimensions as the input.
	Bitmap *Bitmap

	// Elapsed is the wall-clock time from upload to readback inclusive
	// (compute) or of the filter call (reference).
	Elapsed time.Duration

	Path   Path
	Radius int

	// Engine names the device backend or reference engine.
	Engine string

	// Stages is set for PathCompute only.
	Stages []StageTiming
}

// Milliseconds returns Elapsed in fractional milliseconds.
func (r *BlurResult) Milliseconds() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}
