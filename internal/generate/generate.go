// Package generate produces replacement codec tokens for an edit by
// prompting a speech model with surrounding audio context.
package generate

import (
	"context"
	"fmt"

	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/codec"
	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/tokens"
)

// Segment is one conditioning utterance for the speech model: what was
// said, by whom, and the matching audio at 24 kHz.
type Segment struct {
	Speaker int
	Text    string
	Audio   []float32
}

// Request is a single generation call.
type Request struct {
	Text             string
	Speaker          int
	Context          []Segment
	MaxAudioLengthMS int
	Temperature      float64
	TopK             int
}

// SpeechModel synthesizes speech continuing the voice heard in the
// context segments.
type SpeechModel interface {
	Generate(ctx context.Context, req Request) ([]float32, error)
}

// Input carries everything needed to generate replacement tokens for
// one edit against a session's current state.
type Input struct {
	Audio   []float32
	Text    string
	Speaker int
	Words   []asr.Word
	Op      edit.Operation
}

const (
	defaultTemperature = 0.7
	defaultTopK        = 30
	contextSeconds     = 3.0
)

// Generator turns resolved edit operations into freshly generated token
// matrices. Generation failures are fatal; encoding failures fall back
// through the codec's streaming and standard paths.
type Generator struct {
	model SpeechModel
	codec codec.Codec

	Temperature float64
	TopK        int

	// OnWarning receives non-fatal diagnostics such as streaming encode
	// fallbacks. Nil disables reporting.
	OnWarning func(msg string)
}

func NewGenerator(model SpeechModel, c codec.Codec) *Generator {
	return &Generator{
		model:       model,
		codec:       c,
		Temperature: defaultTemperature,
		TopK:        defaultTopK,
	}
}

// Replacement generates tokens for the edit in in.Op. Deletions return
// a zero-length matrix without calling the model at all.
func (g *Generator) Replacement(ctx context.Context, in Input) (tokens.Matrix, error) {
	if in.Op.IsDeletion() {
		return tokens.New(tokens.NumCodebooks, 0), nil
	}

	segs := []Segment{g.preContextSegment(in)}
	if post, ok := g.postContextSegment(in); ok {
		segs = append(segs, post)
	}
	lengthMS := EstimateDurationMS(in.Op.EditedText, in.Words)

	audio, err := g.model.Generate(ctx, Request{
		Text:             in.Op.EditedText,
		Speaker:          in.Speaker,
		Context:          segs,
		MaxAudioLengthMS: lengthMS,
		Temperature:      g.Temperature,
		TopK:             g.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("generate replacement: %w", err)
	}

	return g.encode(ctx, audio)
}

// preContextSegment extracts conditioning audio before the edit,
// preferring the pre-padding region and falling back to audio from the
// start through the edit point. The segment's text is the pre-padding's
// own transcript, or empty for the generic fallback window.
func (g *Generator) preContextSegment(in Input) Segment {
	startTok, endTok := 0, in.Op.StartToken
	text := ""
	if in.Op.Prepadding.StartToken >= 0 && in.Op.Prepadding.EndToken >= 0 && in.Op.Prepadding.Text != "" {
		startTok, endTok = in.Op.Prepadding.StartToken, in.Op.Prepadding.EndToken
		text = in.Op.Prepadding.Text
	}
	return Segment{
		Speaker: in.Speaker,
		Text:    text,
		Audio:   contextAudio(in.Audio, startTok, endTok, contextSeconds),
	}
}

// postContextSegment extracts conditioning audio after the edit when a
// post-padding span exists.
func (g *Generator) postContextSegment(in Input) (Segment, bool) {
	p := in.Op.Postpadding
	if p.StartToken < 0 || p.EndToken < 0 || p.Text == "" {
		return Segment{}, false
	}
	return Segment{
		Speaker: in.Speaker,
		Text:    p.Text,
		Audio:   contextAudio(in.Audio, p.StartToken, p.EndToken, contextSeconds),
	}, true
}

// contextAudio converts a token range to sample offsets and widens it by
// the given number of seconds on both sides, clamped to the audio.
func contextAudio(audio []float32, startTok, endTok int, seconds float64) []float32 {
	startTime := float64(startTok) / tokens.FrameRate
	endTime := float64(endTok) / tokens.FrameRate
	ctxSamples := int(seconds * tokens.SampleRate)

	start := int(startTime*tokens.SampleRate) - ctxSamples
	if start < 0 {
		start = 0
	}
	end := int(endTime*tokens.SampleRate) + ctxSamples
	if end > len(audio) {
		end = len(audio)
	}
	if start > end {
		start = end
	}
	return audio[start:end]
}

// encode converts generated audio back to tokens, preferring the
// streaming encoder when the codec offers one.
func (g *Generator) encode(ctx context.Context, audio []float32) (tokens.Matrix, error) {
	if se, ok := g.codec.(codec.StreamEncoder); ok {
		m, err := se.EncodeStep(ctx, audio)
		if err == nil {
			return m, nil
		}
		if g.OnWarning != nil {
			g.OnWarning(fmt.Sprintf("streaming encode failed: %v, falling back to standard encode", err))
		}
	}
	m, err := g.codec.Encode(ctx, audio)
	if err != nil {
		return nil, fmt.Errorf("encode generated audio: %w", err)
	}
	return m, nil
}
