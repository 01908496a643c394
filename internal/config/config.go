// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/providers/llm"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port           string
	AllowedOrigins []string

	// Empty DatabaseURL selects the in-memory conversation store.
	DatabaseURL string

	// S3 settings; an empty bucket selects the local-disk file store.
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	FileStoreDir string

	PaceChunkSize    int
	PaceInterval     time.Duration
	PaceMaxFlush     time.Duration
	ShutdownTimeout  time.Duration
	providerSettings map[llm.ProviderType]chat.ProviderSettings
}

// Load reads the environment (and .env, when present) into a Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		AwsAccessKey:    getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:    getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:       getEnv("AWS_REGION", "us-east-1"),
		BucketName:      getEnv("BUCKET_NAME", ""),
		FileStoreDir:    getEnv("FILE_STORE_DIR", "./data/files"),
		PaceChunkSize:   getEnvInt("PACE_CHUNK_SIZE", 0),
		PaceInterval:    getEnvMillis("PACE_INTERVAL_MS", 0),
		PaceMaxFlush:    getEnvMillis("PACE_MAX_FLUSH_MS", 0),
		ShutdownTimeout: getEnvMillis("SHUTDOWN_TIMEOUT_MS", 10_000),
		providerSettings: map[llm.ProviderType]chat.ProviderSettings{
			llm.ProviderOpenAI: {
				APIKey:       getEnv("OPENAI_API_KEY", ""),
				BaseURL:      getEnv("OPENAI_BASE_URL", ""),
				DefaultModel: getEnv("OPENAI_DEFAULT_MODEL", "gpt-4o-mini"),
			},
			llm.ProviderAnthropic: {
				APIKey:       getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL:      getEnv("ANTHROPIC_BASE_URL", ""),
				DefaultModel: getEnv("ANTHROPIC_DEFAULT_MODEL", "claude-sonnet-4-20250514"),
			},
			llm.ProviderGoogle: {
				APIKey:       getEnv("GOOGLE_API_KEY", ""),
				BaseURL:      getEnv("GOOGLE_BASE_URL", ""),
				DefaultModel: getEnv("GOOGLE_DEFAULT_MODEL", "gemini-2.0-flash"),
			},
			llm.ProviderOllama: {
				BaseURL:      getEnv("OLLAMA_BASE_URL", ""),
				DefaultModel: getEnv("OLLAMA_DEFAULT_MODEL", "llama3.2"),
			},
			llm.ProviderOpenRouter: {
				APIKey:       getEnv("OPENROUTER_API_KEY", ""),
				BaseURL:      getEnv("OPENROUTER_BASE_URL", ""),
				DefaultModel: getEnv("OPENROUTER_DEFAULT_MODEL", ""),
			},
		},
	}

	return cfg
}

// Resolve returns the environment-backed settings for a provider. The user
// id is accepted for interface compatibility; per-user key storage is a
// separate resolver.
func (c *Config) Resolve(_ context.Context, _ string, provider llm.ProviderType) (chat.ProviderSettings, error) {
	settings, ok := c.providerSettings[provider]
	if !ok {
		return chat.ProviderSettings{}, fmt.Errorf("no settings for provider %s", provider)
	}
	return settings, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
