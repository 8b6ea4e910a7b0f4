// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.sakhi/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, chat model, embedder model and dimension
//   - Retrieval: top-K, chunk size/overlap, ingestion concurrency
//   - Storage: PostgreSQL (vector index) and SQLite (session history)
//   - Moderation: denylist and canned reply for screened input
//
// Security: passwords are never logged; config directory uses 0750 permissions.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top k")

	// ErrInvalidChunking indicates chunk size/overlap are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidConcurrency indicates the ingestion concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid ingest concurrency")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTimeout indicates a capability timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (see db/migrations).
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension is the vector dimension used across the
	// embedder, the vector index schema, and all dimension checks.
	DefaultEmbedderDimension = 768

	// DefaultTopK is the default number of nearest neighbors retrieved per query.
	DefaultTopK = 3

	// DefaultChunkSize is the default chunk window size in runes.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default overlap between consecutive chunks in runes.
	DefaultChunkOverlap = 200

	// DefaultIngestConcurrency is the default number of concurrent
	// embed+upsert workers during ingestion.
	DefaultIngestConcurrency = 5
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama"
	ModelName   string  `mapstructure:"model_name" json:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3"
	Temperature float32 `mapstructure:"temperature" json:"temperature"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedding configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Retrieval and ingestion configuration
	TopK              int `mapstructure:"top_k" json:"top_k"`
	ChunkSize         int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	IngestConcurrency int `mapstructure:"ingest_concurrency" json:"ingest_concurrency"`
	IngestRetries     int `mapstructure:"ingest_retries" json:"ingest_retries"`

	// Persona and moderation configuration
	Persona     string   `mapstructure:"persona" json:"persona"`
	Denylist    []string `mapstructure:"denylist" json:"denylist"`
	CannedReply string   `mapstructure:"canned_reply" json:"canned_reply"`

	// Capability timeouts (independent per external call type)
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout" json:"embed_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" json:"query_timeout"`
	CompleteTimeout time.Duration `mapstructure:"complete_timeout" json:"complete_timeout"`

	// Vector index storage (PostgreSQL + pgvector)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Session history storage (local SQLite)
	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`

	// HTTP server
	HTTPAddr string `mapstructure:"http_addr" json:"http_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	// Configuration directory: ~/.sakhi/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".sakhi")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedding defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// Retrieval and ingestion defaults
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("ingest_concurrency", DefaultIngestConcurrency)
	viper.SetDefault("ingest_retries", 2)

	// Persona and moderation defaults
	viper.SetDefault("persona", DefaultPersona)
	viper.SetDefault("denylist", DefaultDenylist)
	viper.SetDefault("canned_reply", DefaultCannedReply)

	// Capability timeouts
	viper.SetDefault("embed_timeout", "30s")
	viper.SetDefault("query_timeout", "10s")
	viper.SetDefault("complete_timeout", "60s")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "sakhi")
	viper.SetDefault("postgres_password", "sakhi_dev_password")
	viper.SetDefault("postgres_db_name", "sakhi")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// SQLite defaults
	viper.SetDefault("sqlite_path", filepath.Join(configDir, "sessions.db"))

	// HTTP defaults
	viper.SetDefault("http_addr", "127.0.0.1:3001")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; validation checks
// its presence based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SAKHI_PROVIDER")
	mustBind("model_name", "SAKHI_MODEL_NAME")
	mustBind("embedder_model", "SAKHI_EMBEDDER_MODEL")
	mustBind("embedder_dimension", "SAKHI_EMBEDDER_DIMENSION")
	mustBind("ollama_host", "SAKHI_OLLAMA_HOST")
	mustBind("http_addr", "SAKHI_HTTP_ADDR")
	mustBind("sqlite_path", "SAKHI_SQLITE_PATH")
	mustBind("top_k", "SAKHI_TOP_K")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields (passwords, API keys), update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
