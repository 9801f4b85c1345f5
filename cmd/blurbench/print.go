package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/gogpu/gblur"
	"github.com/gogpu/gblur/bench"
	"github.com/gogpu/gblur/gpucore"
)

type printer struct {
	out io.Writer

	heading *color.Color
	dim     *color.Color
	good    *color.Color
	bad     *color.Color
	warn    *color.Color
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:     out,
		heading: color.New(color.FgCyan, color.Bold),
		dim:     color.New(color.FgHiBlack),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
	}
}

func (p *printer) header(info gpucore.AdapterInfo, m *bench.Matrix) {
	fmt.Fprintln(p.out)
	p.heading.Fprintf(p.out, "━━━ gblur benchmark ━━━\n")
	p.dim.Fprintf(p.out, "  device:    %s (%s)\n", info.Name, info.Backend)
	engine := m.Engine
	if engine == "" {
		engine = "default"
	}
	p.dim.Fprintf(p.out, "  reference: %s\n", engine)
	p.dim.Fprintf(p.out, "  matrix:    %d sizes x %d radii\n\n", len(m.Sizes), len(m.Radii))
}

// progress prints one line per completed record.
func (p *printer) progress(rec bench.Record) {
	switch {
	case rec.Faster != 0:
		p.good.Fprintf(p.out, "  ✓ %s r=%d\n", rec.Size, rec.Radius)
	default:
		p.warn.Fprintf(p.out, "  ! %s r=%d (missing data point)\n", rec.Size, rec.Radius)
	}
}

func (p *printer) table(report *bench.Report) {
	header := report.Header()
	rows := report.Rows()

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	fmt.Fprintln(p.out)
	p.heading.Fprintln(p.out, formatRow(header, widths))
	p.dim.Fprintln(p.out, strings.Repeat("─", sum(widths)+2*(len(widths)-1)))
	for i, row := range rows {
		line := formatRow(row, widths)
		rec := report.Records[i]
		switch {
		case rec.ComputeErr != "" || rec.ReferenceErr != "":
			p.bad.Fprintln(p.out, line)
		case rec.Faster == gblur.PathCompute:
			p.good.Fprintln(p.out, line)
		default:
			fmt.Fprintln(p.out, line)
		}
	}
}

func (p *printer) scaling(report *bench.Report) {
	fmt.Fprintln(p.out)
	for _, r := range report.Radii() {
		exp, err := report.ScalingExponent(r)
		if errors.Is(err, bench.ErrInsufficientData) {
			p.dim.Fprintf(p.out, "  r=%d: scaling exponent n/a (%v)\n", r, err)
			continue
		}
		c := p.good
		if exp >= 1.5 {
			c = p.warn
		}
		c.Fprintf(p.out, "  r=%d: compute time ∝ pixels^%.2f\n", r, exp)
	}
	p.dim.Fprintf(p.out, "\n  run %s\n", report.RunID)
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
	}
	return b.String()
}

func sum(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}
