// Package asr defines the speech recognition collaborator interface and
// transcript types shared across the pipeline.
package asr

import "context"

// Word is one recognized word with timing in seconds. Entries are
// non-overlapping and monotonically increasing after alignment.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Transcript is a full recognition result.
type Transcript struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}

// Engine transcribes mono 24 kHz float32 samples. Implementations wrap
// external ASR models and are injected by the caller.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (Transcript, error)
}

// pauseSplitThreshold caps how much inter-word silence is redistributed
// to the surrounding words, in seconds.
const pauseSplitThreshold = 0.12

// AdjustPauses redistributes silence between adjacent words: pauses up to
// the threshold are split evenly onto both neighbors, longer pauses
// contribute half the threshold to each side. This tightens word spans so
// frame mapping does not swallow silence into word boundaries.
func AdjustPauses(words []Word) []Word {
	if len(words) < 2 {
		return words
	}
	out := make([]Word, len(words))
	copy(out, words)
	for i := 0; i < len(out)-1; i++ {
		pause := out[i+1].Start - out[i].End
		if pause <= 0 {
			continue
		}
		distribute := pause / 2
		if pause > pauseSplitThreshold {
			distribute = pauseSplitThreshold / 2
		}
		out[i].End += distribute
		out[i+1].Start -= distribute
	}
	return out
}
