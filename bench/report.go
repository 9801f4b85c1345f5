package bench

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gogpu/gblur"
)

// ErrInsufficientData is returned by ScalingExponent when fewer than two
// distinct sizes have compute timings for the radius.
var ErrInsufficientData = errors.New("bench: insufficient data")

// Record is the outcome of one (size, radius) pair.
type Record struct {
	Size   Size
	Radius int

	// ComputeTime is zero and ComputeErr set when the compute path failed.
	ComputeTime time.Duration
	ComputeErr  string

	// ReferenceTime is zero and ReferenceErr set when the reference path
	// failed.
	ReferenceTime   time.Duration
	ReferenceErr    string
	ReferenceEngine string

	// Speedup is ReferenceTime/ComputeTime, zero unless both paths ran.
	Speedup float64

	// Faster is the faster path, zero unless both paths ran.
	Faster gblur.Path

	// MeanDelta is the mean absolute channel difference between the two
	// outputs on a 0-255 scale.
	MeanDelta float64
}

// HasCompute reports whether the compute path ran without error. A zero
// ComputeTime is a valid timing below the clock resolution.
func (r *Record) HasCompute() bool { return r.ComputeErr == "" }

// HasReference reports whether the reference path ran without error.
func (r *Record) HasReference() bool { return r.ReferenceErr == "" }

func (r *Record) finish() {
	r.Speedup = 0
	r.Faster = 0
	if !r.HasCompute() || !r.HasReference() {
		return
	}
	if r.ComputeTime > 0 {
		r.Speedup = float64(r.ReferenceTime) / float64(r.ComputeTime)
	}
	if r.ComputeTime <= r.ReferenceTime {
		r.Faster = gblur.PathCompute
	} else {
		r.Faster = gblur.PathReference
	}
}

// Report is the result of RunMatrix.
type Report struct {
	RunID   string
	Started time.Time

	// Backend and Device describe the compute device.
	Backend string
	Device  string

	// Engine is the requested reference engine; empty means the default.
	Engine string

	Records []Record
}

// Radii returns the distinct radii in the report, ascending.
func (r *Report) Radii() []int {
	seen := make(map[int]bool)
	var radii []int
	for _, rec := range r.Records {
		if !seen[rec.Radius] {
			seen[rec.Radius] = true
			radii = append(radii, rec.Radius)
		}
	}
	sort.Ints(radii)
	return radii
}

// ScalingExponent fits log(computeTime) = a + b*log(pixels) over the
// records with the given radius and returns b. A value near 1 means the
// compute path scales linearly with pixel count, near 2 quadratically.
func (r *Report) ScalingExponent(radius int) (float64, error) {
	var xs, ys []float64
	distinct := make(map[int]bool)
	for _, rec := range r.Records {
		// A zero timing has no logarithm.
		if rec.Radius != radius || !rec.HasCompute() || rec.ComputeTime <= 0 {
			continue
		}
		xs = append(xs, math.Log(float64(rec.Size.Pixels())))
		ys = append(ys, math.Log(rec.ComputeTime.Seconds()))
		distinct[rec.Size.Pixels()] = true
	}
	if len(distinct) < 2 {
		return 0, fmt.Errorf("%w: %d sizes with compute timings for radius %d",
			ErrInsufficientData, len(distinct), radius)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta, nil
}

// Header returns the column names of Rows.
func (r *Report) Header() []string {
	return []string{"size", "radius", "compute ms", "reference ms", "speedup", "faster", "mean Δ"}
}

// Rows formats the records as table rows. Missing data points show the
// error instead of a timing.
func (r *Report) Rows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		compute := "error: " + rec.ComputeErr
		if rec.HasCompute() {
			compute = formatMillis(rec.ComputeTime)
		}
		ref := "error: " + rec.ReferenceErr
		if rec.HasReference() {
			ref = formatMillis(rec.ReferenceTime)
		}
		speedup, faster, delta := "-", "-", "-"
		if rec.Speedup > 0 {
			speedup = strconv.FormatFloat(rec.Speedup, 'f', 2, 64) + "x"
		}
		if rec.Faster != 0 {
			faster = rec.Faster.String()
			delta = strconv.FormatFloat(rec.MeanDelta, 'f', 2, 64)
		}
		rows = append(rows, []string{
			rec.Size.String(),
			strconv.Itoa(rec.Radius),
			compute,
			ref,
			speedup,
			faster,
			delta,
		})
	}
	return rows
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 2, 64)
}
