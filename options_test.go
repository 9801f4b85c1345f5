package gblur

import (
	"testing"

	"github.com/gogpu/gblur/gpucore"
)

func TestContextOptions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []ContextOption
		check func(t *testing.T, o contextOptions)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, o contextOptions) {
				if o.workgroupSize != DefaultWorkgroupSize {
					t.Errorf("workgroupSize = %v, want %v", o.workgroupSize, DefaultWorkgroupSize)
				}
				if o.backend != "" || o.device != nil || o.cacheSize != 0 || o.reference != "" {
					t.Errorf("unexpected non-default options: %+v", o)
				}
			},
		},
		{
			name: "backend",
			opts: []ContextOption{WithBackend(gpucore.BackendSoftware)},
			check: func(t *testing.T, o contextOptions) {
				if o.backend != gpucore.BackendSoftware {
					t.Errorf("backend = %q", o.backend)
				}
			},
		},
		{
			name: "workgroup size",
			opts: []ContextOption{WithWorkgroupSize(8, 4)},
			check: func(t *testing.T, o contextOptions) {
				if o.workgroupSize != [2]uint32{8, 4} {
					t.Errorf("workgroupSize = %v, want [8 4]", o.workgroupSize)
				}
			},
		},
		{
			name: "weight cache default size",
			opts: []ContextOption{WithWeightCache(0)},
			check: func(t *testing.T, o contextOptions) {
				if o.cacheSize != 64 {
					t.Errorf("cacheSize = %d, want 64", o.cacheSize)
				}
			},
		},
		{
			name: "reference",
			opts: []ContextOption{WithReference("bild")},
			check: func(t *testing.T, o contextOptions) {
				if o.reference != "bild" {
					t.Errorf("reference = %q, want bild", o.reference)
				}
			},
		},
		{
			name: "last option wins",
			opts: []ContextOption{WithWorkgroupSize(8, 8), WithWorkgroupSize(32, 2)},
			check: func(t *testing.T, o contextOptions) {
				if o.workgroupSize != [2]uint32{32, 2} {
					t.Errorf("workgroupSize = %v, want [32 2]", o.workgroupSize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			for _, opt := range tt.opts {
				opt(&o)
			}
			tt.check(t, o)
		})
	}
}

func TestContext_WorkgroupSizeApplied(t *testing.T) {
	c := newTestContext(t, WithWorkgroupSize(8, 4))
	if got := c.WorkgroupSize(); got != [2]uint32{8, 4} {
		t.Errorf("WorkgroupSize() = %v, want [8 4]", got)
	}
}
