package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion engine.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool
	Production       bool

	LLMAPIKey           string
	LLMBaseURL          string
	LLMModel            string
	LLMSmallModel       string
	LLMRequestTimeout   time.Duration
	LLMStructuredRetry  int
	LLMTemperature      float64
	LLMSmallTemperature float64

	EmbeddingModel    string
	EmbeddingDim      int
	EmbeddingCacheTTL time.Duration

	MemoryBackend string
	DatabaseURL   string
	ChromemPath   string

	CheckpointBackend string
	RedisURL          string

	MemoryTopK              int
	RagTopK                 int
	RouterMessagesToAnalyze int
	SummaryTrigger          int
	MessagesAfterSummary    int
	MaxRetrievalAttempts    int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "ava"),
		ShutdownTimeout:  15 * time.Second,

		LLMAPIKey:  trimmedEnv("LLM_API_KEY"),
		LLMBaseURL: trimmedEnv("LLM_BASE_URL"),
		// Defaults follow an OpenAI-compatible gateway; any model string the
		// gateway accepts works here.
		LLMModel:            envOrDefault("LLM_MODEL", "gemini-2.0-flash"),
		LLMSmallModel:       envOrDefault("LLM_SMALL_MODEL", "gemma2-9b-it"),
		LLMRequestTimeout:   60 * time.Second,
		LLMStructuredRetry:  2,
		LLMTemperature:      0.7,
		LLMSmallTemperature: 0.3,

		EmbeddingModel:    envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:      1536,
		EmbeddingCacheTTL: time.Hour,

		MemoryBackend: envOrDefault("MEMORY_BACKEND", "auto"),
		DatabaseURL:   trimmedEnv("DATABASE_URL"),
		ChromemPath:   trimmedEnv("CHROMEM_PATH"),

		CheckpointBackend: envOrDefault("CHECKPOINT_BACKEND", "auto"),
		RedisURL:          trimmedEnv("REDIS_URL"),

		MemoryTopK:              3,
		RagTopK:                 3,
		RouterMessagesToAnalyze: 3,
		SummaryTrigger:          20,
		MessagesAfterSummary:    5,
		MaxRetrievalAttempts:    2,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.Production, err = boolFromEnv("APP_PRODUCTION", cfg.Production); err != nil {
		return Config{}, err
	}
	if cfg.LLMRequestTimeout, err = durationFromEnv("LLM_REQUEST_TIMEOUT", cfg.LLMRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.LLMStructuredRetry, err = intFromEnv("LLM_STRUCTURED_RETRIES", cfg.LLMStructuredRetry); err != nil {
		return Config{}, err
	}
	if cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim); err != nil {
		return Config{}, err
	}
	if cfg.EmbeddingCacheTTL, err = durationFromEnv("EMBEDDING_CACHE_TTL", cfg.EmbeddingCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.MemoryTopK, err = intFromEnv("MEMORY_TOP_K", cfg.MemoryTopK); err != nil {
		return Config{}, err
	}
	if cfg.RagTopK, err = intFromEnv("RAG_TOP_K", cfg.RagTopK); err != nil {
		return Config{}, err
	}
	if cfg.RouterMessagesToAnalyze, err = intFromEnv("ROUTER_MESSAGES_TO_ANALYZE", cfg.RouterMessagesToAnalyze); err != nil {
		return Config{}, err
	}
	if cfg.SummaryTrigger, err = intFromEnv("TOTAL_MESSAGES_SUMMARY_TRIGGER", cfg.SummaryTrigger); err != nil {
		return Config{}, err
	}
	if cfg.MessagesAfterSummary, err = intFromEnv("TOTAL_MESSAGES_AFTER_SUMMARY", cfg.MessagesAfterSummary); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetrievalAttempts, err = intFromEnv("MAX_RETRIEVAL_ATTEMPTS", cfg.MaxRetrievalAttempts); err != nil {
		return Config{}, err
	}

	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.MemoryTopK <= 0 || cfg.RagTopK <= 0 {
		return Config{}, fmt.Errorf("MEMORY_TOP_K and RAG_TOP_K must be positive")
	}
	if cfg.RouterMessagesToAnalyze <= 0 {
		return Config{}, fmt.Errorf("ROUTER_MESSAGES_TO_ANALYZE must be positive")
	}
	if cfg.MessagesAfterSummary <= 0 {
		return Config{}, fmt.Errorf("TOTAL_MESSAGES_AFTER_SUMMARY must be positive")
	}
	if cfg.SummaryTrigger <= cfg.MessagesAfterSummary {
		return Config{}, fmt.Errorf("TOTAL_MESSAGES_SUMMARY_TRIGGER must exceed TOTAL_MESSAGES_AFTER_SUMMARY")
	}
	if cfg.MaxRetrievalAttempts < 0 {
		return Config{}, fmt.Errorf("MAX_RETRIEVAL_ATTEMPTS must be >= 0")
	}
	if cfg.LLMStructuredRetry < 0 {
		return Config{}, fmt.Errorf("LLM_STRUCTURED_RETRIES must be >= 0")
	}

	switch cfg.MemoryBackend {
	case "auto", "postgres", "chromem", "memory":
	default:
		return Config{}, fmt.Errorf("unsupported MEMORY_BACKEND %q", cfg.MemoryBackend)
	}
	switch cfg.CheckpointBackend {
	case "auto", "postgres", "redis", "memory":
	default:
		return Config{}, fmt.Errorf("unsupported CHECKPOINT_BACKEND %q", cfg.CheckpointBackend)
	}
	if cfg.MemoryBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("MEMORY_BACKEND=postgres requires DATABASE_URL")
	}
	if cfg.CheckpointBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("CHECKPOINT_BACKEND=postgres requires DATABASE_URL")
	}
	if cfg.CheckpointBackend == "redis" && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("CHECKPOINT_BACKEND=redis requires REDIS_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
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
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
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
