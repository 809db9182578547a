// Package app is the composition root: it wires configuration, model
// providers, the edit pipeline, persistence, and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"github.com/voxedit/voxedit/internal/align"
	"github.com/voxedit/voxedit/internal/asr"
	"github.com/voxedit/voxedit/internal/codec"
	"github.com/voxedit/voxedit/internal/config"
	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/fusion"
	"github.com/voxedit/voxedit/internal/generate"
	"github.com/voxedit/voxedit/internal/history"
	"github.com/voxedit/voxedit/internal/httpapi"
	"github.com/voxedit/voxedit/internal/observability"
	"github.com/voxedit/voxedit/internal/pipeline"
	"github.com/voxedit/voxedit/internal/store"
)

// Providers carries the external model collaborators. Nil Codec, ASR,
// and Speech fields fall back to deterministic in-process mocks, which
// keeps the service runnable without model weights. A nil Acoustic
// model disables forced-alignment refinement; the tokenizer then keeps
// the ASR word timestamps as-is.
type Providers struct {
	Codec       codec.Codec
	ASR         asr.Engine
	Speech      generate.SpeechModel
	Acoustic    align.AcousticModel
	Watermarker pipeline.Watermarker
}

type BuildResult struct {
	Config    config.Config
	API       *httpapi.Server
	Registry  *store.Registry
	Pipeline  *pipeline.Pipeline
	Tokenizer *pipeline.Tokenizer
	Metrics   *observability.Metrics
	History   history.Store

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, prov Providers) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	if prov.Codec == nil {
		log.Printf("codec provider: mock (no model configured)")
		prov.Codec = &codec.Mock{}
	}
	if prov.ASR == nil {
		log.Printf("asr provider: mock (no model configured)")
		prov.ASR = &asr.Mock{}
	}
	if prov.Speech == nil {
		log.Printf("speech provider: mock (no model configured)")
		prov.Speech = &generate.MockModel{}
	}

	hist, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}

	safe := codec.NewSafe(prov.Codec)
	safe.OnFallback = func(op string, err error) {
		metrics.CodecFallbacks.WithLabelValues(op).Inc()
		metrics.ObserveIndicator("codec_fallback")
		log.Printf("codec %s fell back: %v", op, err)
	}

	generator := generate.NewGenerator(prov.Speech, safe)
	generator.Temperature = cfg.GenerateTemperature
	generator.TopK = cfg.GenerateTopK
	generator.OnWarning = func(msg string) {
		metrics.ObserveIndicator("generate_warning")
		log.Printf("generate: %s", msg)
	}

	fusionCfg := fusion.DefaultConfig()
	fusionCfg.Method = fusion.Method(cfg.FusionMethod)
	fusionCfg.CrossfadeFrames = cfg.FusionCrossfadeFrames
	fusionCfg.Alpha = cfg.FusionAlpha
	fusionCfg.DecayFactor = cfg.FusionDecayFactor
	fuser := fusion.New(fusionCfg, rand.New(rand.NewSource(rand.Int63())))
	fuser.OnWarning = func(msg string) {
		metrics.FusionWarnings.Inc()
		log.Printf("fusion: %s", msg)
	}

	pipe := pipeline.New(safe, generator, fuser, prov.Watermarker)
	pipe.Metrics = metrics

	tokenizer := pipeline.NewTokenizer(safe, prov.ASR)
	tokenizer.SemanticOnly = cfg.SemanticOnly
	tokenizer.Metrics = metrics
	if prov.Acoustic != nil {
		tokenizer.Aligner = align.New(prov.Acoustic, cfg.Language)
	} else {
		log.Printf("alignment refinement disabled: no acoustic model configured")
	}
	tokenizer.OnWarning = func(msg string) {
		log.Printf("tokenize: %s", msg)
	}

	var resolver *edit.Resolver
	if strings.TrimSpace(cfg.EditModelURL) != "" {
		resolver = edit.NewResolver(edit.NewHTTPInstructionModel(cfg.EditModelURL))
		resolver.Warnf = func(format string, args ...any) {
			metrics.ObserveIndicator("low_confidence_match")
			log.Printf("resolve: "+format, args...)
		}
	} else {
		log.Printf("instruction edits disabled: EDIT_MODEL_URL not set")
	}

	registry := store.NewRegistry(cfg.SessionInactivityTimeout)
	registry.AudioDumpDir = cfg.AudioDumpDir
	registry.OnWarning = func(msg string) {
		log.Printf("store: %s", msg)
	}
	events := httpapi.NewEventHub(metrics)
	pipe.OnStage = events.PublishStage
	registry.SetExpireHook(func(sessionID string) {
		events.CloseSession(sessionID)
		metrics.ActiveSessions.Set(float64(registry.Len()))
		log.Printf("session %s expired", sessionID)
	})

	api := httpapi.New(cfg, registry, tokenizer, pipe, resolver, hist, metrics, events)

	cleanup := func() error {
		return hist.Close()
	}

	return &BuildResult{
		Config:    cfg,
		API:       api,
		Registry:  registry,
		Pipeline:  pipe,
		Tokenizer: tokenizer,
		Metrics:   metrics,
		History:   hist,
		Cleanup:   cleanup,
	}, nil
}
