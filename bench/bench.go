package bench

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gogpu/gblur"
)

// Option configures RunMatrix.
type Option func(*options)

type options struct {
	engine     string
	iterations int
	warmup     bool
	progress   func(Record)
	image      func(Size) (*gblur.Bitmap, error)
}

func defaultOptions() options {
	return options{
		iterations: 1,
		warmup:     true,
		image:      TestImage,
	}
}

// WithEngine selects the reference engine (see reference.Names).
func WithEngine(name string) Option {
	return func(o *options) {
		o.engine = name
	}
}

// WithIterations runs every path n times and records the fastest run.
func WithIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// WithWarmup toggles one untimed run of each path before the matrix.
// Enabled by default.
func WithWarmup(enabled bool) Option {
	return func(o *options) {
		o.warmup = enabled
	}
}

// WithProgress calls fn after each record is complete.
func WithProgress(fn func(Record)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithImageSource replaces TestImage as the source of input images.
func WithImageSource(fn func(Size) (*gblur.Bitmap, error)) Option {
	return func(o *options) {
		o.image = fn
	}
}

// RunMatrix runs both blur paths for every (size, radius) pair, sizes in
// the outer loop. Cancelling ctx stops the matrix between pairs; records
// completed so far are kept. A nil ctx is treated as context.Background.
func RunMatrix(ctx context.Context, gctx *gblur.Context, sizes []Size, radii []int, opts ...Option) *Report {
	if ctx == nil {
		ctx = context.Background()
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Engine:  o.engine,
	}
	if gctx != nil {
		info := gctx.DeviceInfo()
		report.Backend = info.Backend
		report.Device = info.Name
	}

	log := gblur.Logger().With(slog.String("run_id", report.RunID))
	if o.warmup {
		warmup(gctx, &o)
	}

	for _, size := range sizes {
		src, imgErr := o.image(size)
		for _, radius := range radii {
			if ctx.Err() != nil {
				log.Info("bench: matrix cancelled", slog.Int("records", len(report.Records)))
				return report
			}

			rec := Record{Size: size, Radius: radius}
			if imgErr != nil {
				rec.ComputeErr = imgErr.Error()
				rec.ReferenceErr = imgErr.Error()
			} else {
				rec = runPair(gctx, src, size, radius, &o)
			}
			rec.finish()

			log.Debug("bench: record",
				slog.String("size", size.String()),
				slog.Int("radius", radius),
				slog.Duration("compute", rec.ComputeTime),
				slog.Duration("reference", rec.ReferenceTime),
				slog.Float64("speedup", rec.Speedup))

			report.Records = append(report.Records, rec)
			if o.progress != nil {
				o.progress(rec)
			}
		}
	}
	return report
}

func warmup(gctx *gblur.Context, o *options) {
	src, err := o.image(Size{Width: 32, Height: 32})
	if err != nil {
		return
	}
	if gctx != nil {
		_, _ = gctx.BlurGPU(src, 1)
	}
	_, _ = blurReference(gctx, src, 1, o)
}

// blurReference runs the reference path, preferring the engine configured
// on gctx unless the matrix names one.
func blurReference(gctx *gblur.Context, src *gblur.Bitmap, radius int, o *options) (*gblur.BlurResult, error) {
	var opts []gblur.ReferenceOption
	if o.engine != "" {
		opts = append(opts, gblur.WithEngine(o.engine))
	}
	if gctx == nil {
		return gblur.BlurReference(src, radius, opts...)
	}
	return gctx.BlurReference(src, radius, opts...)
}

// runPair times both paths for one input. Errors become missing points.
func runPair(gctx *gblur.Context, src *gblur.Bitmap, size Size, radius int, o *options) Record {
	rec := Record{Size: size, Radius: radius}

	var gpuOut, refOut *gblur.Bitmap
	if gctx == nil {
		rec.ComputeErr = "no compute context"
	} else {
		for i := 0; i < o.iterations; i++ {
			res, err := gctx.BlurGPU(src, radius)
			if err != nil {
				rec.ComputeErr = err.Error()
				rec.ComputeTime = 0
				break
			}
			if i == 0 || res.Elapsed < rec.ComputeTime {
				rec.ComputeTime = res.Elapsed
			}
			gpuOut = res.Bitmap
		}
	}

	for i := 0; i < o.iterations; i++ {
		res, err := blurReference(gctx, src, radius, o)
		if err != nil {
			rec.ReferenceErr = err.Error()
			rec.ReferenceTime = 0
			break
		}
		if i == 0 || res.Elapsed < rec.ReferenceTime {
			rec.ReferenceTime = res.Elapsed
		}
		rec.ReferenceEngine = res.Engine
		refOut = res.Bitmap
	}

	if rec.ComputeErr == "" && rec.ReferenceErr == "" && gpuOut != nil && refOut != nil {
		rec.MeanDelta = meanDelta(gpuOut.Pix(), refOut.Pix())
	}
	return rec
}

// meanDelta returns the mean absolute per-channel difference in [0, 255].
func meanDelta(a, b []uint8) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum int64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a))
}
