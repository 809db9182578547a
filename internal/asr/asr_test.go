package asr

import (
	"math"
	"testing"
)

func TestAdjustPausesSplitsShortPause(t *testing.T) {
	words := []Word{
		{Text: "one", Start: 0.0, End: 0.40},
		{Text: "two", Start: 0.50, End: 0.90},
	}
	out := AdjustPauses(words)
	if math.Abs(out[0].End-0.45) > 1e-9 {
		t.Fatalf("first word end = %v, want 0.45", out[0].End)
	}
	if math.Abs(out[1].Start-0.45) > 1e-9 {
		t.Fatalf("second word start = %v, want 0.45", out[1].Start)
	}
}

func TestAdjustPausesCapsLongPause(t *testing.T) {
	words := []Word{
		{Text: "one", Start: 0.0, End: 0.40},
		{Text: "two", Start: 1.40, End: 1.80},
	}
	out := AdjustPauses(words)
	if math.Abs(out[0].End-0.46) > 1e-9 {
		t.Fatalf("first word end = %v, want 0.46", out[0].End)
	}
	if math.Abs(out[1].Start-1.34) > 1e-9 {
		t.Fatalf("second word start = %v, want 1.34", out[1].Start)
	}
}

func TestAdjustPausesLeavesInputUntouched(t *testing.T) {
	words := []Word{
		{Text: "one", Start: 0.0, End: 0.40},
		{Text: "two", Start: 0.50, End: 0.90},
	}
	_ = AdjustPauses(words)
	if words[0].End != 0.40 {
		t.Fatalf("AdjustPauses mutated its input: end = %v", words[0].End)
	}
}
