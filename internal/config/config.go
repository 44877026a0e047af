// Package config loads application configuration from the environment and
// an optional .env file, with sensible defaults and validation.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/Abhijit1102/githawk/internal/logger"
)

// DBConfig holds connection settings for the relational store.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// AIConfig selects the generator and embedder models and their providers.
type AIConfig struct {
	Provider        string // ollama, gemini or anthropic
	GeneratorModel  string
	EmbedderModel   string
	OllamaHost      string
	GeminiAPIKey    string
	AnthropicAPIKey string
	GenerateTimeout time.Duration
}

// QuotaConfig holds FREE-tier limits. Limits are lifetime, not rolling.
type QuotaConfig struct {
	FreeMaxRepositories int
	FreeMaxReviews      int
}

// IndexConfig tunes chunking and indexing parallelism.
type IndexConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxParallel  int
}

// ContextConfig bounds retrieval-augmented context assembly.
type ContextConfig struct {
	TopK     int
	MaxChars int
}

// JobsConfig tunes the orchestrator's worker pool and step retry policy.
type JobsConfig struct {
	MaxWorkers     int
	StepTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort          string
	GitHubWebhookSecret string
	PublicBaseURL       string
	QdrantHost          string
	MaxDiffChars        int

	AI       AIConfig
	Quota    QuotaConfig
	Index    IndexConfig
	Context  ContextConfig
	Jobs     JobsConfig
	Database *DBConfig
	Logger   logger.Config
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "githawk")
	viper.SetDefault("DB_NAME", "githawk")
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_CONN_MAX_IDLE_TIME", "5m")

	viper.SetDefault("QDRANT_HOST", "localhost:6334")
	viper.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	viper.SetDefault("LLM_PROVIDER", "ollama")
	viper.SetDefault("GENERATOR_MODEL_NAME", "gemma3:latest")
	viper.SetDefault("EMBEDDER_MODEL_NAME", "nomic-embed-text")
	viper.SetDefault("GENERATE_TIMEOUT", "3m")

	viper.SetDefault("FREE_MAX_REPOSITORIES", 5)
	viper.SetDefault("FREE_MAX_REVIEWS", 5)

	viper.SetDefault("CHUNK_SIZE", 2000)
	viper.SetDefault("CHUNK_OVERLAP", 200)
	viper.SetDefault("INDEX_MAX_PARALLEL", 4)

	viper.SetDefault("CONTEXT_TOP_K", 5)
	viper.SetDefault("CONTEXT_MAX_CHARS", 12000)
	viper.SetDefault("MAX_DIFF_CHARS", 100000)

	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("STEP_TIMEOUT", "2m")
	viper.SetDefault("STEP_MAX_ATTEMPTS", 3)
	viper.SetDefault("STEP_RETRY_BASE_DELAY", "1s")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", "error", err)
		}
	}

	if viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}

	provider := viper.GetString("LLM_PROVIDER")
	switch provider {
	case "ollama":
	case "gemini":
		if viper.GetString("GEMINI_API_KEY") == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY must be set for the gemini provider")
		}
	case "anthropic":
		if viper.GetString("ANTHROPIC_API_KEY") == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for the anthropic provider")
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	cfg := &Config{
		ServerPort:          viper.GetString("SERVER_PORT"),
		GitHubWebhookSecret: viper.GetString("GITHUB_WEBHOOK_SECRET"),
		PublicBaseURL:       viper.GetString("PUBLIC_BASE_URL"),
		QdrantHost:          viper.GetString("QDRANT_HOST"),
		MaxDiffChars:        viper.GetInt("MAX_DIFF_CHARS"),
		AI: AIConfig{
			Provider:        provider,
			GeneratorModel:  viper.GetString("GENERATOR_MODEL_NAME"),
			EmbedderModel:   viper.GetString("EMBEDDER_MODEL_NAME"),
			OllamaHost:      viper.GetString("OLLAMA_HOST"),
			GeminiAPIKey:    viper.GetString("GEMINI_API_KEY"),
			AnthropicAPIKey: viper.GetString("ANTHROPIC_API_KEY"),
			GenerateTimeout: viper.GetDuration("GENERATE_TIMEOUT"),
		},
		Quota: QuotaConfig{
			FreeMaxRepositories: viper.GetInt("FREE_MAX_REPOSITORIES"),
			FreeMaxReviews:      viper.GetInt("FREE_MAX_REVIEWS"),
		},
		Index: IndexConfig{
			ChunkSize:    viper.GetInt("CHUNK_SIZE"),
			ChunkOverlap: viper.GetInt("CHUNK_OVERLAP"),
			MaxParallel:  viper.GetInt("INDEX_MAX_PARALLEL"),
		},
		Context: ContextConfig{
			TopK:     viper.GetInt("CONTEXT_TOP_K"),
			MaxChars: viper.GetInt("CONTEXT_MAX_CHARS"),
		},
		Jobs: JobsConfig{
			MaxWorkers:     viper.GetInt("MAX_WORKERS"),
			StepTimeout:    viper.GetDuration("STEP_TIMEOUT"),
			MaxAttempts:    viper.GetInt("STEP_MAX_ATTEMPTS"),
			RetryBaseDelay: viper.GetDuration("STEP_RETRY_BASE_DELAY"),
		},
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: viper.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Logger: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects tunable combinations that would break the pipeline's
// invariants rather than merely perform badly.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.Index.ChunkOverlap)
	}
	if c.Context.TopK <= 0 {
		return fmt.Errorf("CONTEXT_TOP_K must be positive, got %d", c.Context.TopK)
	}
	if c.Jobs.MaxAttempts <= 0 {
		return fmt.Errorf("STEP_MAX_ATTEMPTS must be positive, got %d", c.Jobs.MaxAttempts)
	}
	if c.Quota.FreeMaxRepositories <= 0 || c.Quota.FreeMaxReviews <= 0 {
		return fmt.Errorf("FREE tier limits must be positive")
	}
	return nil
}
