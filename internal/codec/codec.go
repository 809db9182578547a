// Package codec wraps a neural audio codec behind encode/decode
// interfaces. The underlying model is an external collaborator; this
// package only normalizes shapes and failure behavior.
package codec

import (
	"context"

	"github.com/voxedit/voxedit/internal/tokens"
)

// Codec converts between mono 24 kHz float32 samples and RVQ token
// matrices. Callers must resample before encoding.
type Codec interface {
	Encode(ctx context.Context, samples []float32) (tokens.Matrix, error)
	Decode(ctx context.Context, m tokens.Matrix) ([]float32, error)
}

// StreamEncoder is an optional fast path for incremental encoding.
// Implementations reset their streaming state per call.
type StreamEncoder interface {
	EncodeStep(ctx context.Context, samples []float32) (tokens.Matrix, error)
}

// fallbackSamples is the silent decode fallback length: one frame of
// audio at 24 kHz (80 ms).
const fallbackSamples = 1920

// Safe wraps a Codec so that model failures degrade to well-shaped
// fallback output instead of propagating. Downstream fusion arithmetic
// assumes well-shaped tensors; a silent frame is preferred over a crash.
// Generation failures are handled differently (fatal) by design.
type Safe struct {
	inner Codec

	// OnFallback, when set, is called with the failed operation name and
	// the underlying error before the fallback value is returned.
	OnFallback func(op string, err error)
}

// NewSafe wraps inner with fallback behavior.
func NewSafe(inner Codec) *Safe {
	return &Safe{inner: inner}
}

// Encode returns the underlying encoding, or a single zeroed frame when
// the model fails.
func (s *Safe) Encode(ctx context.Context, samples []float32) (tokens.Matrix, error) {
	m, err := s.inner.Encode(ctx, samples)
	if err != nil {
		s.fallback("encode", err)
		return tokens.New(tokens.NumCodebooks, 1), nil
	}
	return m, nil
}

// Decode returns the underlying waveform, or one frame of silence when
// the model fails.
func (s *Safe) Decode(ctx context.Context, m tokens.Matrix) ([]float32, error) {
	samples, err := s.inner.Decode(ctx, m)
	if err != nil {
		s.fallback("decode", err)
		return make([]float32, fallbackSamples), nil
	}
	return samples, nil
}

// EncodeStep uses the inner streaming path when available, falling back
// to the standard encode otherwise. Streaming failures fall through to
// the standard path rather than the zero-frame fallback.
func (s *Safe) EncodeStep(ctx context.Context, samples []float32) (tokens.Matrix, error) {
	if se, ok := s.inner.(StreamEncoder); ok {
		if m, err := se.EncodeStep(ctx, samples); err == nil {
			return m, nil
		}
	}
	return s.Encode(ctx, samples)
}

func (s *Safe) fallback(op string, err error) {
	if s.OnFallback != nil {
		s.OnFallback(op, err)
	}
}
