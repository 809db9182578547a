package asr

import "context"

// Mock returns a fixed transcript regardless of input audio.
type Mock struct {
	Result Transcript
	Err    error
}

func (m *Mock) Transcribe(_ context.Context, _ []float32) (Transcript, error) {
	if m.Err != nil {
		return Transcript{}, m.Err
	}
	return m.Result, nil
}
