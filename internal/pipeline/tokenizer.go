// Package pipeline assembles the edit flow: tokenize on ingest, then
// generate, fuse, decode, and watermark per edit operation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/voxedit/voxedit/internal/align"
	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/audio"
	"github.com/voxedit/voxedit/internal/codec"
	"github.com/voxedit/voxedit/internal/observability"
	"github.com/voxedit/voxedit/internal/store"
	"github.com/voxedit/voxedit/internal/tokenmap"
	"github.com/voxedit/voxedit/internal/tokens"
)

// Tokenizer turns raw audio into an editable session snapshot: codec
// tokens, transcript, and the character-to-frame mapping between them.
type Tokenizer struct {
	codec codec.Codec
	asr   asr.Engine

	// Aligner, when set, refines ASR word timings with CTC forced
	// alignment. Alignment failures fall back to the ASR timings.
	Aligner *align.Aligner

	// SemanticOnly skips codec encoding and maps characters to word
	// indices instead of token frames.
	SemanticOnly bool

	Metrics   *observability.Metrics
	OnWarning func(msg string)
}

func NewTokenizer(c codec.Codec, engine asr.Engine) *Tokenizer {
	return &Tokenizer{codec: c, asr: engine}
}

func (t *Tokenizer) warnf(format string, args ...any) {
	if t.OnWarning != nil {
		t.OnWarning(fmt.Sprintf(format, args...))
	}
}

// FromWAV decodes a WAV blob and tokenizes it.
func (t *Tokenizer) FromWAV(ctx context.Context, wav []byte, speakerID int) (*store.Snapshot, error) {
	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return t.FromSamples(ctx, samples, rate, speakerID)
}

// FromSamples resamples to the codec rate, normalizes, encodes, and
// transcribes, producing the session's initial snapshot.
func (t *Tokenizer) FromSamples(ctx context.Context, samples []float32, sampleRate, speakerID int) (*store.Snapshot, error) {
	started := time.Now()

	if sampleRate != tokens.SampleRate {
		samples = audio.Resample(samples, sampleRate, tokens.SampleRate)
	}
	samples = audio.Normalize(samples)
	if len(samples) == 0 {
		return nil, fmt.Errorf("tokenize: empty audio")
	}

	var m tokens.Matrix
	if !t.SemanticOnly {
		var err error
		m, err = t.codec.Encode(ctx, samples)
		if err != nil {
			return nil, fmt.Errorf("encode audio: %w", err)
		}
	}

	tr, err := t.asr.Transcribe(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}
	words := asr.AdjustPauses(tr.Words)

	if t.Aligner != nil && tr.Text != "" {
		duration := float64(len(samples)) / tokens.SampleRate
		aligned, err := t.Aligner.Align(ctx, samples, tr.Text, 0, duration)
		if err != nil {
			t.warnf("forced alignment failed: %v, keeping recognizer timings", err)
		} else if len(aligned) > 0 {
			words = asr.AdjustPauses(aligned)
		}
	}

	snap := &store.Snapshot{
		Audio:      samples,
		SampleRate: tokens.SampleRate,
		Tokens:     m,
		Text:       tr.Text,
		Words:      words,
		SpeakerID:  speakerID,
	}
	if t.SemanticOnly {
		snap.Map = tokenmap.BuildSemantic(tr.Text, words)
		snap.SemanticToRVQ = tokenmap.SemanticToRVQ(words, estimateFrames(len(samples)))
	} else {
		snap.Map = tokenmap.Build(tr.Text, words, m.Frames())
	}

	if t.Metrics != nil {
		t.Metrics.ObserveStage("tokenize", time.Since(started))
	}
	return snap, nil
}

// estimateFrames derives a frame count from the sample count when no
// codec tokens exist to measure it from.
func estimateFrames(numSamples int) int {
	frames := int(float64(numSamples) / tokens.SampleRate * tokens.FrameRate)
	if frames < 1 {
		frames = 1
	}
	return frames
}
