package codec

import (
	"context"
	"errors"
	"math"

	"github.com/voxedit/voxedit/internal/tokens"
)

// Mock is a deterministic in-process codec used in tests and local runs
// without model weights. Encode derives one frame per 80 ms of input;
// Decode emits 1920 samples per frame. Round trips preserve duration to
// within one frame but not waveform content.
type Mock struct {
	// FailEncode / FailDecode force the corresponding operation to error.
	FailEncode bool
	FailDecode bool
	// FailEncodeStep forces the streaming path to error so callers
	// exercise their fallback.
	FailEncodeStep bool
}

var errMockFailure = errors.New("mock codec failure")

func (m *Mock) Encode(_ context.Context, samples []float32) (tokens.Matrix, error) {
	if m.FailEncode {
		return nil, errMockFailure
	}
	frames := int(math.Round(float64(len(samples)) / float64(tokens.SampleRate) * tokens.FrameRate))
	if frames < 1 && len(samples) > 0 {
		frames = 1
	}
	out := tokens.New(tokens.NumCodebooks, frames)
	for cb := range out {
		for t := range out[cb] {
			// Deterministic but varied content within vocabulary bounds.
			out[cb][t] = int32((cb*31 + t*17) % tokens.VocabSize)
		}
	}
	return out, nil
}

func (m *Mock) Decode(_ context.Context, mat tokens.Matrix) ([]float32, error) {
	if m.FailDecode {
		return nil, errMockFailure
	}
	// 1920 samples per frame at 24 kHz / 12.5 Hz.
	samples := make([]float32, mat.Frames()*1920)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i) / 24.0))
	}
	return samples, nil
}

func (m *Mock) EncodeStep(ctx context.Context, samples []float32) (tokens.Matrix, error) {
	if m.FailEncodeStep {
		return nil, errMockFailure
	}
	return m.Encode(ctx, samples)
}
