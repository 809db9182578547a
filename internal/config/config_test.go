package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.FusionMethod != "contextual" {
		t.Fatalf("FusionMethod = %q, want contextual", cfg.FusionMethod)
	}
	if cfg.EditModelURL != "" {
		t.Fatalf("EditModelURL = %q, want empty default", cfg.EditModelURL)
	}
	if cfg.GenerateTopK != 30 {
		t.Fatalf("GenerateTopK = %d, want 30", cfg.GenerateTopK)
	}
	if cfg.MaxUploadBytes != 64<<20 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 64<<20)
	}
	if cfg.SessionInactivityTimeout != 24*time.Hour {
		t.Fatalf("SessionInactivityTimeout = %v, want 24h", cfg.SessionInactivityTimeout)
	}
	if cfg.AudioDumpDir != "" {
		t.Fatalf("AudioDumpDir = %q, want empty default", cfg.AudioDumpDir)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("EDIT_MODEL_URL", "http://localhost:7777/edit")
	t.Setenv("FUSION_METHOD", "direct")
	t.Setenv("GENERATE_TEMPERATURE", "0.9")
	t.Setenv("EDIT_SEMANTIC_ONLY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want :9191", cfg.BindAddr)
	}
	if cfg.EditModelURL != "http://localhost:7777/edit" {
		t.Fatalf("EditModelURL = %q, want explicit value", cfg.EditModelURL)
	}
	if cfg.FusionMethod != "direct" {
		t.Fatalf("FusionMethod = %q, want direct", cfg.FusionMethod)
	}
	if cfg.GenerateTemperature != 0.9 {
		t.Fatalf("GenerateTemperature = %v, want 0.9", cfg.GenerateTemperature)
	}
	if !cfg.SemanticOnly {
		t.Fatalf("SemanticOnly = false, want true")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("FUSION_METHOD", "sideways")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want invalid fusion method error")
	}

	setCoreEnvEmpty(t)
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want inactivity timeout error")
	}

	setCoreEnvEmpty(t)
	t.Setenv("GENERATE_TOP_K", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want parse error")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_SESSION_JANITOR_INTERVAL",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_MAX_UPLOAD_MB",
		"EDIT_MODEL_URL",
		"EDIT_LANGUAGE",
		"EDIT_SEMANTIC_ONLY",
		"EDIT_HISTORY_LIMIT",
		"FUSION_METHOD",
		"FUSION_CROSSFADE_FRAMES",
		"FUSION_ALPHA",
		"FUSION_DECAY_FACTOR",
		"GENERATE_TEMPERATURE",
		"GENERATE_TOP_K",
		"DATABASE_URL",
		"APP_AUDIO_DUMP_DIR",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
