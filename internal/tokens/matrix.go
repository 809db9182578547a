// Package tokens defines the RVQ token matrix shared by the codec,
// fusion, and store layers.
package tokens

// Codec framing constants. The Mimi-style codec these values describe runs
// at 12.5 frames per second with 32 residual codebooks; callers must not
// assume any other geometry.
const (
	NumCodebooks = 32
	FrameRate    = 12.5
	FrameMillis  = 80
	VocabSize    = 2051
	SampleRate   = 24000
)

// Matrix holds RVQ tokens as [codebook][frame]. Codebook 0 is the coarse
// semantic codebook; higher codebooks carry acoustic fine detail.
type Matrix [][]int32

// New returns a zeroed matrix with the given shape.
func New(codebooks, frames int) Matrix {
	if codebooks < 0 {
		codebooks = 0
	}
	if frames < 0 {
		frames = 0
	}
	m := make(Matrix, codebooks)
	for cb := range m {
		m[cb] = make([]int32, frames)
	}
	return m
}

// Codebooks reports the number of codebooks.
func (m Matrix) Codebooks() int {
	return len(m)
}

// Frames reports the number of token frames. A matrix with zero codebooks
// has zero frames.
func (m Matrix) Frames() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for cb := range m {
		out[cb] = make([]int32, len(m[cb]))
		copy(out[cb], m[cb])
	}
	return out
}

// Slice returns a copy of frames [start, end) across all codebooks.
// Bounds are clamped to the valid range.
func (m Matrix) Slice(start, end int) Matrix {
	frames := m.Frames()
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}
	if end < start {
		end = start
	}
	out := make(Matrix, len(m))
	for cb := range m {
		out[cb] = make([]int32, end-start)
		copy(out[cb], m[cb][start:end])
	}
	return out
}

// Concat returns the frame-wise concatenation of the given matrices.
// Empty matrices are skipped; all non-empty inputs must share a codebook
// count, which the result adopts.
func Concat(parts ...Matrix) Matrix {
	codebooks := 0
	total := 0
	for _, p := range parts {
		if p.Codebooks() == 0 {
			continue
		}
		if codebooks == 0 {
			codebooks = p.Codebooks()
		}
		total += p.Frames()
	}
	out := New(codebooks, total)
	offset := 0
	for _, p := range parts {
		if p.Codebooks() == 0 {
			continue
		}
		for cb := 0; cb < codebooks && cb < p.Codebooks(); cb++ {
			copy(out[cb][offset:], p[cb])
		}
		offset += p.Frames()
	}
	return out
}

// Equal reports whether m and other have identical shape and contents.
func (m Matrix) Equal(other Matrix) bool {
	return Equal(m, other)
}

// Equal reports whether two matrices have identical shape and contents.
func Equal(a, b Matrix) bool {
	if a.Codebooks() != b.Codebooks() || a.Frames() != b.Frames() {
		return false
	}
	for cb := range a {
		for t := range a[cb] {
			if a[cb][t] != b[cb][t] {
				return false
			}
		}
	}
	return true
}
