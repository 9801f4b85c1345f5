package bench

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidMatrix is returned for matrices without sizes or radii, or with
// non-positive sizes or negative radii.
var ErrInvalidMatrix = errors.New("bench: invalid matrix")

// Size is an image size in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Pixels returns Width*Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WxH" or a single number for a square size.
func ParseSize(v string) (Size, error) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !found {
		h = w
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("%w: size %q", ErrInvalidMatrix, v)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("%w: size %q", ErrInvalidMatrix, v)
	}
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("%w: size %q", ErrInvalidMatrix, v)
	}
	return Size{Width: width, Height: height}, nil
}

// Matrix is a benchmark plan, usually loaded from YAML:
//
//	sizes:
//	  - {width: 500, height: 500}
//	  - {width: 2000, height: 2000}
//	radii: [1, 5, 10, 25]
//	engine: gift
//	iterations: 3
type Matrix struct {
	Sizes      []Size `yaml:"sizes"`
	Radii      []int  `yaml:"radii"`
	Engine     string `yaml:"engine,omitempty"`
	Iterations int    `yaml:"iterations,omitempty"`
}

// DefaultMatrix returns the matrix run when no plan is given.
func DefaultMatrix() Matrix {
	return Matrix{
		Sizes: []Size{
			{Width: 250, Height: 250},
			{Width: 500, Height: 500},
			{Width: 1000, Height: 1000},
			{Width: 2000, Height: 2000},
		},
		Radii:      []int{1, 5, 10, 25},
		Iterations: 1,
	}
}

// Validate checks the matrix.
func (m *Matrix) Validate() error {
	if len(m.Sizes) == 0 || len(m.Radii) == 0 {
		return fmt.Errorf("%w: %d sizes, %d radii", ErrInvalidMatrix, len(m.Sizes), len(m.Radii))
	}
	for _, s := range m.Sizes {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: size %s", ErrInvalidMatrix, s)
		}
	}
	for _, r := range m.Radii {
		if r < 0 {
			return fmt.Errorf("%w: radius %d", ErrInvalidMatrix, r)
		}
	}
	if m.Iterations < 0 {
		return fmt.Errorf("%w: iterations %d", ErrInvalidMatrix, m.Iterations)
	}
	return nil
}

// Options converts the matrix settings into RunMatrix options.
func (m *Matrix) Options() []Option {
	var opts []Option
	if m.Engine != "" {
		opts = append(opts, WithEngine(m.Engine))
	}
	if m.Iterations > 0 {
		opts = append(opts, WithIterations(m.Iterations))
	}
	return opts
}

// ParseMatrix decodes and validates a YAML matrix.
func ParseMatrix(data []byte) (*Matrix, error) {
	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bench: parse matrix: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadMatrix reads a YAML matrix file.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("bench: read matrix: %w", err)
	}
	return ParseMatrix(data)
}
