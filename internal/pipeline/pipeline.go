package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/voxedit/voxedit/internal/codec"
	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/fusion"
	"github.com/voxedit/voxedit/internal/generate"
	"github.com/voxedit/voxedit/internal/observability"
	"github.com/voxedit/voxedit/internal/store"
	"github.com/voxedit/voxedit/internal/tokens"
)

// Pipeline runs one resolved edit operation end to end: generate
// replacement tokens, fuse them into the original sequence, decode the
// result, and watermark the synthesized audio. It implements
// store.EditApplier; the store owns state replacement and versioning.
type Pipeline struct {
	codec       codec.Codec
	generator   *generate.Generator
	fuser       *fusion.Engine
	watermarker Watermarker

	Metrics *observability.Metrics

	// OnStage receives progress notifications per completed stage, keyed
	// by session. Used to push live status over the event stream.
	OnStage func(sessionID, stage string)
}

func New(c codec.Codec, g *generate.Generator, f *fusion.Engine, wm Watermarker) *Pipeline {
	if wm == nil {
		wm = PassthroughWatermarker{}
	}
	return &Pipeline{codec: c, generator: g, fuser: f, watermarker: wm}
}

func (p *Pipeline) stageDone(sessionID, stage string, started time.Time) {
	if p.Metrics != nil {
		p.Metrics.ObserveStage(stage, time.Since(started))
	}
	if p.OnStage != nil {
		p.OnStage(sessionID, stage)
	}
}

// Apply regenerates the token range named by op and returns the new
// session state. The input snapshot is never mutated; on any stage
// failure the caller's state is untouched.
func (p *Pipeline) Apply(ctx context.Context, sessionID string, snap *store.Snapshot, op edit.Operation) (*store.ApplyResult, error) {
	if snap.Tokens == nil {
		return nil, fmt.Errorf("apply edit: session has no codec tokens to edit")
	}
	total := time.Now()

	started := time.Now()
	generated, err := p.generator.Replacement(ctx, generate.Input{
		Audio:   snap.Audio,
		Text:    snap.Text,
		Speaker: snap.SpeakerID,
		Words:   snap.Words,
		Op:      op,
	})
	if err != nil {
		return nil, err
	}
	p.stageDone(sessionID, "generate", started)

	started = time.Now()
	fused, err := p.fuser.Fuse(snap.Tokens, generated, op.StartToken, op.EndToken)
	if err != nil {
		return nil, fmt.Errorf("fuse tokens: %w", err)
	}
	p.stageDone(sessionID, "fuse", started)

	started = time.Now()
	samples, err := p.codec.Decode(ctx, fused)
	if err != nil {
		return nil, fmt.Errorf("decode fused tokens: %w", err)
	}
	p.stageDone(sessionID, "decode", started)

	started = time.Now()
	samples, err = p.watermarker.Apply(ctx, samples, snap.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("watermark audio: %w", err)
	}
	p.stageDone(sessionID, "watermark", started)

	next := snap.Clone()
	next.Tokens = fused
	next.Audio = samples
	next.Text = snap.SpliceText(op)

	p.stageDone(sessionID, "edit_total", total)
	return &store.ApplyResult{
		State:   next,
		Regions: []store.GeneratedRegion{generatedRegion(op, generated.Frames())},
	}, nil
}

// generatedRegion converts the edited token span to seconds for the
// version record.
func generatedRegion(op edit.Operation, genFrames int) store.GeneratedRegion {
	return store.GeneratedRegion{
		Start:    float64(op.StartToken) / tokens.FrameRate,
		End:      float64(op.StartToken+genFrames) / tokens.FrameRate,
		Original: op.OriginalText,
		Edited:   op.EditedText,
	}
}
