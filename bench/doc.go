// Package bench compares the compute blur with the reference baseline over
// a matrix of image sizes and radii.
//
// For every (size, radius) pair RunMatrix builds a deterministic test image,
// times both paths and records the speedup reference/compute together with
// the faster path. A failing path leaves a missing data point with its
// error; it never aborts the matrix. Nothing is retried.
//
// Example:
//
//	ctx, _ := gblur.NewContext()
//	defer ctx.Close()
//
//	report := bench.RunMatrix(context.Background(), ctx,
//	    []bench.Size{{500, 500}, {2000, 2000}}, []int{10})
//	exp, _ := report.ScalingExponent(10)
package bench
