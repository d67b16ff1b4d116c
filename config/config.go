// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is everything the bot needs to start. Missing required
// values fail Load, so a misconfigured deploy dies at startup instead
// of at first use.
type Config struct {
	// Model providers.
	AnthropicAPIKey string
	ChatModel       string
	JudgeModel      string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	EmbeddingModel  string
	EmbeddingDim    int

	// Storage. VectorStore selects the long-term backend:
	// "pgvector" (default) or "local" for an in-process store that
	// needs no database.
	VectorStore   string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Memory tuning.
	RulesPath       string
	HistoryLimit    int
	LongTermCap     int
	QueryLimit      int
	AdmitTimeout    time.Duration
	RetrieveTimeout time.Duration

	// Server.
	ListenAddr string
}

// Load reads configuration from environment variables, applying
// defaults for everything optional.
func Load() (*Config, error) {
	cfg := &Config{
		ChatModel:      getenv("CHAT_MODEL", "claude-sonnet-4-20250514"),
		JudgeModel:     getenv("JUDGE_MODEL", "claude-3-5-haiku-20241022"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel: getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		VectorStore:    getenv("VECTOR_STORE", "pgvector"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RulesPath:      getenv("RULES_PATH", "rules.yaml"),
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
	}

	var err error
	if cfg.AnthropicAPIKey, err = require("ANTHROPIC_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.OpenAIAPIKey, err = require("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	switch cfg.VectorStore {
	case "pgvector":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("config: DATABASE_URL is required with VECTOR_STORE=pgvector")
		}
	case "local":
	default:
		return nil, fmt.Errorf("config: unknown VECTOR_STORE %q", cfg.VectorStore)
	}

	if cfg.EmbeddingDim, err = getint("EMBEDDING_DIMENSIONS", 1536); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getint("HISTORY_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.LongTermCap, err = getint("LONG_TERM_CAP", 50); err != nil {
		return nil, err
	}
	if cfg.QueryLimit, err = getint("QUERY_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.AdmitTimeout, err = getduration("ADMIT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetrieveTimeout, err = getduration("RETRIEVE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func require(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: %s is required", key)
	}
	return v, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
