// Package config provides configuration management for Reverie.
// It loads settings from environment variables with the REVERIE_ prefix
// (optionally seeded from a .env file) and provides sensible defaults for
// all configuration options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix shared by every Reverie environment variable.
const EnvPrefix = "REVERIE"

// Config holds all configuration settings for the Reverie application.
//
// Nested structs map to prefixed variables, e.g. Server.Port is read from
// REVERIE_SERVER_PORT and Retrieval.TopK from REVERIE_RETRIEVAL_TOP_K.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Redis     RedisConfig
	Backup    BackupConfig
	Log       LogConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"6464"`              // Server port
	Host            string        `envconfig:"HOST" default:"127.0.0.1"`         // Bind address, loopback by default
	RateLimit       float64       `envconfig:"RATE_LIMIT" default:"5"`           // Requests per second per client
	RateBurst       int           `envconfig:"RATE_BURST" default:"10"`          // Token bucket burst size
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`   // Graceful shutdown budget
	MaxBodyBytes    int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"` // Request body cap

	// AllowedOrigins lists extra host patterns allowed to open the query
	// websocket, e.g. "localhost:3000". Same-origin is always allowed.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:""`
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string `envconfig:"ENGINE" default:"sqlite"`            // sqlite or postgres
	DataPath    string `envconfig:"DATA_PATH" default:"./data"`         // Directory for the sqlite file
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`            // Required when Engine is postgres
	Dimension   int    `envconfig:"EMBEDDING_DIMENSION" default:"1536"` // pgvector column width
}

// LLMConfig contains generation and embedding provider configuration.
type LLMConfig struct {
	// Provider selects the chat backend: openai, ollama or anthropic.
	Provider string `envconfig:"PROVIDER" default:"openai"`

	// EmbeddingProvider defaults to Provider. Anthropic has no embeddings API.
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:""`

	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel      string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	OpenAIEmbedModel string `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`

	OllamaURL        string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel      string `envconfig:"OLLAMA_MODEL" default:"qwen2.5:7b"`
	OllamaEmbedModel string `envconfig:"OLLAMA_EMBEDDING_MODEL" default:"nomic-embed-text"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-sonnet-20241022"`

	MaxTokens      int           `envconfig:"MAX_TOKENS" default:"2048"`
	Temperature    float64       `envconfig:"TEMPERATURE" default:"0.7"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"120s"`

	// RetryMaxElapsed bounds backoff for embed, store and stream-open calls.
	RetryMaxElapsed time.Duration `envconfig:"RETRY_MAX_ELAPSED" default:"10s"`
}

// RetrievalConfig tunes how candidate entries and history are selected.
type RetrievalConfig struct {
	TopK          int     `envconfig:"TOP_K" default:"15"`           // Max entries from similarity search
	Threshold     float64 `envconfig:"THRESHOLD" default:"0.3"`      // Min cosine similarity
	HistoryWindow int     `envconfig:"HISTORY_WINDOW" default:"8"`   // Prior turns kept in the prompt
	DefaultMode   string  `envconfig:"DEFAULT_MODE" default:"coach"` // Persona when a request names none
}

// RedisConfig enables the optional embedding cache.
type RedisConfig struct {
	URL string        `envconfig:"URL" default:""`    // redis://host:6379/0; empty disables caching
	TTL time.Duration `envconfig:"TTL" default:"24h"` // Cached embedding lifetime
}

// BackupConfig controls SQLite journal snapshots.
type BackupConfig struct {
	// Dir holds the snapshots. Empty means <DATA_PATH>/backups.
	Dir string `envconfig:"DIR" default:""`

	// Interval schedules snapshots in reverie-web; 0 disables them.
	Interval time.Duration `envconfig:"INTERVAL" default:"0s"`

	// Retention per age tier: last day, week, month and year.
	KeepHourly  int `envconfig:"KEEP_HOURLY" default:"24"`
	KeepDaily   int `envconfig:"KEEP_DAILY" default:"7"`
	KeepWeekly  int `envconfig:"KEEP_WEEKLY" default:"4"`
	KeepMonthly int `envconfig:"KEEP_MONTHLY" default:"12"`
}

// SnapshotDir resolves the backup directory against the data path.
func (c *Config) SnapshotDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(c.Storage.DataPath, "backups")
}

// LogConfig controls the zerolog logger.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`  // debug, info, warn, error
	Format string `envconfig:"FORMAT" default:"json"` // json or console
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. A .env file in the working directory, or the file named by
// REVERIE_ENV_FILE, is applied first; variables already set in the process
// environment always win.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment variables: %w", err)
	}
	if cfg.LLM.EmbeddingProvider == "" {
		cfg.LLM.EmbeddingProvider = cfg.LLM.Provider
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv(EnvPrefix + "_ENV_FILE")
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: REVERIE_STORAGE_POSTGRES_DSN is required for the postgres engine")
		}
		if c.Storage.Dimension <= 0 {
			return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Storage.Dimension)
		}
	default:
		return fmt.Errorf("config: unsupported storage engine %q", c.Storage.Engine)
	}

	switch c.LLM.Provider {
	case "openai", "ollama", "anthropic":
	default:
		return fmt.Errorf("config: unsupported LLM provider %q", c.LLM.Provider)
	}
	switch c.LLM.EmbeddingProvider {
	case "openai", "ollama":
	case "anthropic":
		return errors.New("config: anthropic does not provide embeddings; set REVERIE_LLM_EMBEDDING_PROVIDER")
	default:
		return fmt.Errorf("config: unsupported embedding provider %q", c.LLM.EmbeddingProvider)
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.HistoryWindow <= 0 {
		return fmt.Errorf("config: history window must be positive, got %d", c.Retrieval.HistoryWindow)
	}
	if c.Retrieval.Threshold < -1 || c.Retrieval.Threshold > 1 {
		return fmt.Errorf("config: similarity threshold must be within [-1, 1], got %v", c.Retrieval.Threshold)
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("config: backup interval must not be negative, got %v", c.Backup.Interval)
	}
	if c.Backup.Interval > 0 && c.Storage.Engine != "sqlite" {
		return errors.New("config: scheduled backups are only supported for the sqlite engine")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
