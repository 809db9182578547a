package fusion

import (
	"math/rand"
	"testing"

	"github.com/voxedit/voxedit/internal/tokens"
)

func testMatrix(frames int, seed int32) tokens.Matrix {
	m := tokens.New(tokens.NumCodebooks, frames)
	for cb := range m {
		for t := range m[cb] {
			m[cb][t] = (int32(cb)*7 + int32(t)*13 + seed) % tokens.VocabSize
		}
	}
	return m
}

func engineFor(method Method) *Engine {
	cfg := DefaultConfig()
	cfg.Method = method
	return New(cfg, rand.New(rand.NewSource(1)))
}

var allMethods = []Method{MethodDirect, MethodLinear, MethodCrossfade, MethodContextual}

func TestFuseLengthInvariant(t *testing.T) {
	original := testMatrix(50, 0)
	cases := []struct {
		start, end, genLen int
	}{
		{10, 20, 15},
		{10, 20, 5},
		{10, 20, 0},
		{0, 10, 8},
		{40, 50, 12},
		{25, 25, 7},
		{0, 50, 3},
	}
	for _, method := range allMethods {
		for _, tc := range cases {
			e := engineFor(method)
			generated := testMatrix(tc.genLen, 500)
			fused, err := e.Fuse(original, generated, tc.start, tc.end)
			if err != nil {
				t.Fatalf("%s Fuse(%d, %d, gen %d) error = %v", method, tc.start, tc.end, tc.genLen, err)
			}
			want := 50 - (tc.end - tc.start) + tc.genLen
			if fused.Frames() != want {
				t.Fatalf("%s Fuse(%d, %d, gen %d) frames = %d, want %d",
					method, tc.start, tc.end, tc.genLen, fused.Frames(), want)
			}
		}
	}
}

func TestFuseZeroLengthInsertionIsIdentity(t *testing.T) {
	original := testMatrix(40, 0)
	empty := tokens.New(tokens.NumCodebooks, 0)
	for _, method := range allMethods {
		for _, k := range []int{0, 17, 40} {
			fused, err := engineFor(method).Fuse(original, empty, k, k)
			if err != nil {
				t.Fatalf("%s Fuse identity at %d error = %v", method, k, err)
			}
			if !fused.Equal(original) {
				t.Fatalf("%s zero-length insertion at %d changed tokens", method, k)
			}
		}
	}
}

func TestFuseSemanticCodebookPreserved(t *testing.T) {
	original := testMatrix(50, 0)
	generated := testMatrix(12, 500)
	start, end := 15, 25

	for _, method := range allMethods {
		fused, err := engineFor(method).Fuse(original, generated, start, end)
		if err != nil {
			t.Fatalf("%s Fuse() error = %v", method, err)
		}
		for i := 0; i < start; i++ {
			if fused[0][i] != original[0][i] {
				t.Fatalf("%s touched codebook 0 before edit at frame %d", method, i)
			}
		}
		genLen := generated.Frames()
		for i := end; i < 50; i++ {
			if fused[0][start+genLen+(i-end)] != original[0][i] {
				t.Fatalf("%s touched codebook 0 after edit at original frame %d", method, i)
			}
		}
		// Inside the edit, codebook 0 is exactly the generated content.
		for i := 0; i < genLen; i++ {
			if fused[0][start+i] != generated[0][i] {
				t.Fatalf("%s altered generated codebook 0 at frame %d", method, i)
			}
		}
	}
}

func TestFuseDirectIsPureConcatenation(t *testing.T) {
	original := testMatrix(30, 0)
	generated := testMatrix(6, 500)
	fused, err := engineFor(MethodDirect).Fuse(original, generated, 10, 14)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	for cb := 0; cb < tokens.NumCodebooks; cb++ {
		for i := 0; i < 10; i++ {
			if fused[cb][i] != original[cb][i] {
				t.Fatalf("prefix diverged at cb %d frame %d", cb, i)
			}
		}
		for i := 0; i < 6; i++ {
			if fused[cb][10+i] != generated[cb][i] {
				t.Fatalf("generated region diverged at cb %d frame %d", cb, i)
			}
		}
		for i := 14; i < 30; i++ {
			if fused[cb][16+(i-14)] != original[cb][i] {
				t.Fatalf("suffix diverged at cb %d original frame %d", cb, i)
			}
		}
	}
}

func TestFuseDeletionRemovesSpan(t *testing.T) {
	original := testMatrix(30, 0)
	empty := tokens.New(tokens.NumCodebooks, 0)
	fused, err := engineFor(MethodDirect).Fuse(original, empty, 10, 20)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if fused.Frames() != 20 {
		t.Fatalf("deletion frames = %d, want 20", fused.Frames())
	}
	if fused[3][10] != original[3][20] {
		t.Fatalf("deletion did not close the gap")
	}
}

func TestFuseInsertionKeepsAllOriginalFrames(t *testing.T) {
	original := testMatrix(30, 0)
	generated := testMatrix(5, 500)
	fused, err := engineFor(MethodDirect).Fuse(original, generated, 12, 12)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if fused.Frames() != 35 {
		t.Fatalf("insertion frames = %d, want 35", fused.Frames())
	}
	if fused[1][11] != original[1][11] || fused[1][17] != original[1][12] {
		t.Fatalf("insertion displaced original frames incorrectly")
	}
}

func TestFuseInvalidRange(t *testing.T) {
	original := testMatrix(20, 0)
	gen := testMatrix(2, 500)
	if _, err := engineFor(MethodDirect).Fuse(original, gen, -1, 5); err == nil {
		t.Fatalf("negative start: error = nil")
	}
	if _, err := engineFor(MethodDirect).Fuse(original, gen, 10, 5); err == nil {
		t.Fatalf("inverted range: error = nil")
	}
}

func TestFuseClampsOutOfBoundsWithWarning(t *testing.T) {
	original := testMatrix(20, 0)
	gen := testMatrix(4, 500)
	e := engineFor(MethodDirect)
	var warnings int
	e.OnWarning = func(string) { warnings++ }

	fused, err := e.Fuse(original, gen, 25, 30)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if warnings == 0 {
		t.Fatalf("no warning for out-of-bounds range")
	}
	// start clamps to 19, end to 20, so one frame is replaced.
	if fused.Frames() != 20-1+4 {
		t.Fatalf("clamped frames = %d, want %d", fused.Frames(), 23)
	}
}

func TestFuseWarnsOnOutOfVocabTokens(t *testing.T) {
	original := testMatrix(20, 0)
	bad := tokens.New(tokens.NumCodebooks, 2)
	bad[5][1] = tokens.VocabSize + 7

	e := engineFor(MethodDirect)
	var warned bool
	e.OnWarning = func(string) { warned = true }

	if _, err := e.Fuse(original, bad, 5, 7); err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if !warned {
		t.Fatalf("no warning for out-of-vocabulary token")
	}
}
