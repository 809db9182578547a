package app

import (
	"context"
	"testing"

	"github.com/voxedit/voxedit/internal/align"
	"github.com/voxedit/voxedit/internal/config"
)

// Build registers prometheus collectors in the default registry, so it
// can only run once per test binary.
func TestBuildWiresAligner(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.DatabaseURL = ""

	result, err := Build(context.Background(), cfg, Providers{
		Acoustic: &align.MockModel{
			Vocab: map[rune]int{'a': 1, '|': 2},
			Blank: 0,
			Rate:  16000,
		},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	}()

	if result.Tokenizer.Aligner == nil {
		t.Fatalf("Tokenizer.Aligner = nil, want forced-alignment refinement wired")
	}
	if result.API == nil || result.Registry == nil || result.Pipeline == nil {
		t.Fatalf("incomplete build result: %+v", result)
	}
}
