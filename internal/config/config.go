package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice editing service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	SessionJanitorInterval   time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool
	MaxUploadBytes int64

	// EditModelURL points at the instruction-following model endpoint.
	// Empty means instruction edits are served by manual mode only.
	EditModelURL string

	Language     string
	SemanticOnly bool

	FusionMethod          string
	FusionCrossfadeFrames int
	FusionAlpha           float64
	FusionDecayFactor     float64

	GenerateTemperature float64
	GenerateTopK        int

	DatabaseURL  string
	HistoryLimit int

	// AudioDumpDir, when set, makes the session store write each
	// version's audio as a WAV file for offline audit.
	AudioDumpDir string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "voxedit"),
		AllowAnyOrigin:           false,
		MaxUploadBytes:           64 << 20,
		EditModelURL:             stringsTrimSpace("EDIT_MODEL_URL"),
		Language:                 envOrDefault("EDIT_LANGUAGE", "en"),
		SemanticOnly:             false,
		FusionMethod:             envOrDefault("FUSION_METHOD", "contextual"),
		FusionCrossfadeFrames:    3,
		FusionAlpha:              0.2,
		FusionDecayFactor:        0.1,
		GenerateTemperature:      0.7,
		GenerateTopK:             30,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		HistoryLimit:             50,
		AudioDumpDir:             stringsTrimSpace("APP_AUDIO_DUMP_DIR"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 24 * time.Hour,
		SessionJanitorInterval:   time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionJanitorInterval, err = durationFromEnv("APP_SESSION_JANITOR_INTERVAL", cfg.SessionJanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SemanticOnly, err = boolFromEnv("EDIT_SEMANTIC_ONLY", cfg.SemanticOnly)
	if err != nil {
		return Config{}, err
	}
	cfg.FusionCrossfadeFrames, err = intFromEnv("FUSION_CROSSFADE_FRAMES", cfg.FusionCrossfadeFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.FusionAlpha, err = floatFromEnv("FUSION_ALPHA", cfg.FusionAlpha)
	if err != nil {
		return Config{}, err
	}
	cfg.FusionDecayFactor, err = floatFromEnv("FUSION_DECAY_FACTOR", cfg.FusionDecayFactor)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTemperature, err = floatFromEnv("GENERATE_TEMPERATURE", cfg.GenerateTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerateTopK, err = intFromEnv("GENERATE_TOP_K", cfg.GenerateTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("EDIT_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	maxUpload, err := intFromEnv("APP_MAX_UPLOAD_MB", int(cfg.MaxUploadBytes>>20))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUpload) << 20

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	switch cfg.FusionMethod {
	case "direct", "linear", "crossfade", "contextual":
	default:
		return Config{}, fmt.Errorf("FUSION_METHOD must be one of direct, linear, crossfade, contextual")
	}
	if cfg.FusionCrossfadeFrames <= 0 {
		return Config{}, fmt.Errorf("FUSION_CROSSFADE_FRAMES must be positive")
	}
	if cfg.GenerateTemperature <= 0 {
		return Config{}, fmt.Errorf("GENERATE_TEMPERATURE must be positive")
	}
	if cfg.GenerateTopK <= 0 {
		return Config{}, fmt.Errorf("GENERATE_TOP_K must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("EDIT_HISTORY_LIMIT must be positive")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_UPLOAD_MB must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
