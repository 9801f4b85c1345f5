package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gogpu/gblur"
	"github.com/gogpu/gblur/bench"
	"github.com/gogpu/gblur/gpucore"
	"github.com/gogpu/gblur/reference"
)

type flags struct {
	backend    string
	reference  string
	matrix     string
	sizes      []string
	radii      []int
	iterations int
	verbose    bool
	noColor    bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:           "blurbench",
		Short:         "Benchmark the compute Gaussian blur against a CPU reference",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), out, f, cmd.Flags())
		},
	}
	bindFlags(cmd.Flags(), f)
	return cmd
}

func bindFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringVar(&f.backend, "backend", os.Getenv("GBLUR_BACKEND"),
		fmt.Sprintf("compute backend (%s); empty selects the best available", strings.Join(gpucore.Available(), ", ")))
	fs.StringVar(&f.reference, "reference", os.Getenv("GBLUR_REFERENCE"),
		fmt.Sprintf("reference engine (%s)", strings.Join(reference.Names(), ", ")))
	fs.StringVarP(&f.matrix, "matrix", "m", "", "YAML benchmark matrix")
	fs.StringSliceVar(&f.sizes, "sizes", nil, "image sizes as WxH or N (overrides the matrix)")
	fs.IntSliceVar(&f.radii, "radii", nil, "kernel radii (overrides the matrix)")
	fs.IntVarP(&f.iterations, "iterations", "n", 0, "runs per path, the fastest is kept")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log device and per-record details to stderr")
	fs.BoolVar(&f.noColor, "no-color", false, "disable coloured output")
}

// loadMatrix combines the matrix file with flag overrides.
func loadMatrix(f *flags, fs *pflag.FlagSet) (*bench.Matrix, error) {
	m := bench.DefaultMatrix()
	if f.matrix != "" {
		loaded, err := bench.LoadMatrix(f.matrix)
		if err != nil {
			return nil, err
		}
		m = *loaded
	}
	if fs.Changed("sizes") {
		m.Sizes = m.Sizes[:0]
		for _, v := range f.sizes {
			s, err := bench.ParseSize(v)
			if err != nil {
				return nil, err
			}
			m.Sizes = append(m.Sizes, s)
		}
	}
	if fs.Changed("radii") {
		m.Radii = f.radii
	}
	if fs.Changed("iterations") {
		m.Iterations = f.iterations
	}
	if f.reference != "" {
		m.Engine = f.reference
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func run(ctx context.Context, out io.Writer, f *flags, fs *pflag.FlagSet) error {
	if f.noColor {
		color.NoColor = true
	}
	if f.verbose {
		gblur.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	m, err := loadMatrix(f, fs)
	if err != nil {
		return err
	}

	var opts []gblur.ContextOption
	if f.backend != "" {
		opts = append(opts, gblur.WithBackend(f.backend))
	}
	gctx, err := gblur.NewContext(opts...)
	if err != nil {
		return fmt.Errorf("open compute context: %w", err)
	}
	defer gctx.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	p := newPrinter(out)
	p.header(gctx.DeviceInfo(), m)

	benchOpts := append(m.Options(), bench.WithProgress(p.progress))
	report := bench.RunMatrix(ctx, gctx, m.Sizes, m.Radii, benchOpts...)

	p.table(report)
	p.scaling(report)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
