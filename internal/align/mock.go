package align

import (
	"context"
	"math"
)

// MockModel is a synthetic acoustic model for tests. Script assigns one
// dominant vocabulary character per emission frame; every other entry in
// the frame gets a uniformly low log probability.
type MockModel struct {
	Vocab  map[rune]int
	Blank  int
	Rate   int
	Script []rune
	Err    error
}

func (m *MockModel) Vocabulary() map[rune]int { return m.Vocab }
func (m *MockModel) BlankID() int             { return m.Blank }
func (m *MockModel) SampleRate() int          { return m.Rate }

func (m *MockModel) Emissions(_ context.Context, _ []float32) ([][]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	vocabSize := len(m.Vocab) + 1
	out := make([][]float64, len(m.Script))
	for t, ch := range m.Script {
		frame := make([]float64, vocabSize)
		for i := range frame {
			frame[i] = math.Log(0.01)
		}
		idx := m.Blank
		if ch != 0 {
			idx = m.Vocab[ch]
		}
		frame[idx] = math.Log(0.9)
		out[t] = frame
	}
	return out, nil
}
