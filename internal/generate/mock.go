package generate

import (
	"context"

	"github.com/voxedit/voxedit/internal/tokens"
)

// MockModel synthesizes silence sized to the request bound and records
// the last request for assertions.
type MockModel struct {
	Err     error
	LastReq Request
}

func (m *MockModel) Generate(_ context.Context, req Request) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.LastReq = req
	samples := int(float64(req.MaxAudioLengthMS) / 1000 * tokens.SampleRate)
	return make([]float32, samples), nil
}
