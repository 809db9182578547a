// Package fusion splices generated codec tokens into an original token
// sequence with optional boundary transitions.
package fusion

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/voxedit/voxedit/internal/tokens"
)

// Method selects the boundary transition policy.
type Method string

const (
	// MethodDirect splices with no transition.
	MethodDirect Method = "direct"
	// MethodLinear stochastically reverts boundary frames to the
	// original sequence with a linear ramp.
	MethodLinear Method = "linear"
	// MethodCrossfade is the same stochastic revert with a symmetric
	// ramp and separate left/right window logic.
	MethodCrossfade Method = "crossfade"
	// MethodContextual samples boundary frames from the empirical token
	// distribution of the surrounding context with an exponential ramp.
	MethodContextual Method = "contextual"
)

// Config tunes fusion. The defaults are deliberate: changing them
// silently alters output quality in ways no test will catch.
type Config struct {
	Method          Method
	CrossfadeFrames int
	Alpha           float64
	DecayFactor     float64
	// UseSemanticPreservation keeps codebook 0 untouched by every
	// transition policy so intelligibility survives the blend.
	UseSemanticPreservation bool
	// TransitionCodebooks lists the codebooks transitions may touch.
	TransitionCodebooks []int
}

// DefaultConfig mirrors the tuned production defaults.
func DefaultConfig() Config {
	cbs := make([]int, 0, tokens.NumCodebooks-1)
	for cb := 1; cb < tokens.NumCodebooks; cb++ {
		cbs = append(cbs, cb)
	}
	return Config{
		Method:                  MethodContextual,
		CrossfadeFrames:         3,
		Alpha:                   0.2,
		DecayFactor:             0.1,
		UseSemanticPreservation: true,
		TransitionCodebooks:     cbs,
	}
}

// Engine fuses token matrices. The random source drives the stochastic
// transition policies; inject one for reproducible output.
type Engine struct {
	cfg Config
	rng *rand.Rand

	// OnWarning receives data-quality diagnostics such as out-of-vocab
	// tokens in the fused result. Nil disables reporting.
	OnWarning func(msg string)
}

func New(cfg Config, rng *rand.Rand) *Engine {
	if cfg.TransitionCodebooks == nil {
		cfg.TransitionCodebooks = DefaultConfig().TransitionCodebooks
	}
	if cfg.CrossfadeFrames <= 0 {
		cfg.CrossfadeFrames = DefaultConfig().CrossfadeFrames
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, rng: rng}
}

func (e *Engine) warnf(format string, args ...any) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Fuse replaces original[start:end] with generated and smooths the two
// boundaries according to the configured method. The output always has
// exactly origLen - (end-start) + genLen frames. Out-of-bounds ranges
// are clamped with a warning; an inverted range is an error.
func (e *Engine) Fuse(original, generated tokens.Matrix, start, end int) (tokens.Matrix, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("fuse: invalid edit range [%d, %d]", start, end)
	}
	origLen := original.Frames()
	if origLen == 0 {
		return nil, fmt.Errorf("fuse: empty original token matrix")
	}

	genLen := generated.Frames()

	// Zero-length insertion of zero generated frames is the identity.
	if start == end && genLen == 0 {
		return original.Clone(), nil
	}

	if start >= origLen {
		e.warnf("edit start %d out of bounds for %d frames, clamping", start, origLen)
		start = origLen - 1
	}
	if end > origLen {
		e.warnf("edit end %d out of bounds for %d frames, clamping", end, origLen)
		end = origLen
	}

	editLen := end - start
	numCodebooks := original.Codebooks()

	fusedLen := origLen - editLen + genLen
	fused := tokens.New(numCodebooks, fusedLen)

	for cb := 0; cb < numCodebooks; cb++ {
		copy(fused[cb][:start], original[cb][:start])
		if genLen > 0 {
			copy(fused[cb][start:start+genLen], generated[cb])
		}
		if start+genLen < fusedLen && end < origLen {
			copy(fused[cb][start+genLen:], original[cb][end:])
		}
	}

	switch e.cfg.Method {
	case MethodDirect:
		// Concatenation stands as-is.
	case MethodLinear:
		e.applyLinear(fused, original, start, end, genLen)
	case MethodCrossfade:
		e.applyCrossfade(fused, original, start, end, genLen)
	case MethodContextual:
		e.applyContextual(fused, original, start, end, genLen)
	default:
		return nil, fmt.Errorf("fuse: unknown method %q", e.cfg.Method)
	}

	e.sanityCheck(fused)
	return fused, nil
}

// blendCodebooks filters the configured transition codebooks down to
// those that may be touched under semantic preservation.
func (e *Engine) blendCodebooks(numCodebooks int) []int {
	out := make([]int, 0, len(e.cfg.TransitionCodebooks))
	for _, cb := range e.cfg.TransitionCodebooks {
		if cb >= numCodebooks {
			continue
		}
		if e.cfg.UseSemanticPreservation && cb == 0 {
			continue
		}
		out = append(out, cb)
	}
	return out
}

func (e *Engine) applyLinear(fused, original tokens.Matrix, start, end, genLen int) {
	cf := e.cfg.CrossfadeFrames
	origLen := original.Frames()
	fusedLen := fused.Frames()
	region := e.blendCodebooks(fused.Codebooks())

	if start >= cf {
		for i := 0; i < cf; i++ {
			alpha := float64(i) / float64(cf)
			blendIdx := start - cf + i
			if blendIdx < 0 || blendIdx >= fusedLen {
				continue
			}
			for _, cb := range region {
				if e.rng.Float64() > alpha {
					origIdx := blendIdx
					if origIdx > origLen-1 {
						origIdx = origLen - 1
					}
					if origIdx >= 0 {
						fused[cb][blendIdx] = original[cb][origIdx]
					}
				}
			}
		}
	}

	rightStart := start + genLen - cf
	if rightStart >= 0 && end < origLen {
		for i := 0; i < cf; i++ {
			alpha := float64(cf-i) / float64(cf)
			blendIdx := rightStart + i
			if blendIdx < 0 || blendIdx >= fusedLen {
				continue
			}
			for _, cb := range region {
				if e.rng.Float64() > alpha {
					origIdx := end - cf + i
					if origIdx > origLen-1 {
						origIdx = origLen - 1
					}
					if origIdx >= 0 {
						fused[cb][blendIdx] = original[cb][origIdx]
					}
				}
			}
		}
	}
}

func (e *Engine) applyCrossfade(fused, original tokens.Matrix, start, end, genLen int) {
	cf := e.cfg.CrossfadeFrames
	origLen := original.Frames()
	fusedLen := fused.Frames()
	region := e.blendCodebooks(fused.Codebooks())

	leftStart := start - cf
	if leftStart < 0 {
		leftStart = 0
	}
	if start > 0 && leftStart < start {
		for _, cb := range region {
			for i := 0; i < start-leftStart; i++ {
				pos := leftStart + i
				alpha := float64(i) / float64(start-leftStart)
				if e.rng.Float64() > alpha && pos < fusedLen && pos < origLen {
					fused[cb][pos] = original[cb][pos]
				}
			}
		}
	}

	rightStart := start + genLen
	rightEnd := rightStart + cf
	if rightEnd > fusedLen {
		rightEnd = fusedLen
	}
	if rightStart < fusedLen && end < origLen {
		window := rightEnd - rightStart
		rampLen := cf
		if window < rampLen {
			rampLen = window
		}
		for _, cb := range region {
			for i := 0; i < window; i++ {
				alpha := 1 - float64(i)/float64(rampLen)
				pos := rightStart + i
				if e.rng.Float64() > alpha {
					origIdx := end + i
					if origIdx > origLen-1 {
						origIdx = origLen - 1
					}
					if origIdx >= 0 && pos < fusedLen {
						fused[cb][pos] = original[cb][origIdx]
					}
				}
			}
		}
	}
}

func (e *Engine) applyContextual(fused, original tokens.Matrix, start, end, genLen int) {
	cf := e.cfg.CrossfadeFrames
	origLen := original.Frames()
	fusedLen := fused.Frames()
	region := e.blendCodebooks(fused.Codebooks())

	contextSize := 2 * cf
	leftFrom := start - contextSize
	if leftFrom < 0 {
		leftFrom = 0
	}
	leftStats := tokenStats(original, leftFrom, start)

	rightTo := end + contextSize
	if rightTo > origLen {
		rightTo = origLen
	}
	rightStats := tokenStats(original, end, rightTo)

	if start >= cf && leftStats != nil {
		for _, cb := range region {
			for i := 0; i < cf; i++ {
				alpha := math.Pow(float64(i)/float64(cf), e.cfg.DecayFactor)
				blendIdx := start - cf + i
				if blendIdx < 0 || blendIdx >= fusedLen {
					continue
				}
				if e.rng.Float64() > alpha {
					if dist, ok := leftStats[cb]; ok {
						fused[cb][blendIdx] = e.sample(dist)
					}
				}
			}
		}
	}

	rightStart := start + genLen
	if rightStart < fusedLen && rightStats != nil {
		for _, cb := range region {
			for i := 0; i < cf; i++ {
				if rightStart+i >= fusedLen {
					continue
				}
				alpha := math.Pow(float64(cf-i)/float64(cf), e.cfg.DecayFactor)
				if e.rng.Float64() > alpha {
					if dist, ok := rightStats[cb]; ok {
						fused[cb][rightStart+i] = e.sample(dist)
					}
				}
			}
		}
	}
}

// tokenStats builds the per-codebook token frequency table over the
// frame window [from, to). Returns nil for an empty window.
func tokenStats(m tokens.Matrix, from, to int) map[int]map[int32]int {
	if to <= from {
		return nil
	}
	stats := make(map[int]map[int32]int, m.Codebooks())
	for cb := 0; cb < m.Codebooks(); cb++ {
		dist := make(map[int32]int)
		for t := from; t < to; t++ {
			dist[m[cb][t]]++
		}
		stats[cb] = dist
	}
	return stats
}

// sample draws one token from the frequency table, weighted by count.
// Keys are visited in sorted order so an injected random source gives
// reproducible output.
func (e *Engine) sample(dist map[int32]int) int32 {
	keys := make([]int32, 0, len(dist))
	total := 0
	for k, c := range dist {
		keys = append(keys, k)
		total += c
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	r := e.rng.Intn(total)
	for _, k := range keys {
		r -= dist[k]
		if r < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

// sanityCheck scans for tokens outside the codec vocabulary. Violations
// are data-quality warnings, not fatal.
func (e *Engine) sanityCheck(m tokens.Matrix) {
	for cb := range m {
		for t, v := range m[cb] {
			if v < 0 || v >= tokens.VocabSize {
				e.warnf("invalid token %d at codebook %d frame %d", v, cb, t)
				return
			}
		}
	}
}
