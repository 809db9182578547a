package pipeline

import "context"

// Watermarker embeds an inaudible marker into synthesized audio so
// generated speech remains detectable downstream.
type Watermarker interface {
	Apply(ctx context.Context, samples []float32, sampleRate int) ([]float32, error)
}

// PassthroughWatermarker returns the audio unchanged. Used when no
// watermarking model is configured.
type PassthroughWatermarker struct{}

func (PassthroughWatermarker) Apply(_ context.Context, samples []float32, _ int) ([]float32, error) {
	return samples, nil
}
