package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider and API key validation
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q is not supported (expected %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderGemini, ProviderOllama)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Embedding validation. The dimension is shared by the embedder, the
	// vector index schema, and all pre-query dimension checks; 3072 is the
	// native gemini-embedding-001 output before truncation.
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 3072 {
		return fmt.Errorf("%w: must be between 1 and 3072, got %d",
			ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	// Retrieval and ingestion validation
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got overlap=%d size=%d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}
	if c.IngestConcurrency < 1 || c.IngestConcurrency > 64 {
		return fmt.Errorf("%w: must be between 1 and 64, got %d",
			ErrInvalidConcurrency, c.IngestConcurrency)
	}

	// Capability timeouts must be positive so a hung external call can never
	// wedge a session indefinitely.
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("%w: embed_timeout must be positive, got %v", ErrInvalidTimeout, c.EmbedTimeout)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("%w: query_timeout must be positive, got %v", ErrInvalidTimeout, c.QueryTimeout)
	}
	if c.CompleteTimeout <= 0 {
		return fmt.Errorf("%w: complete_timeout must be positive, got %v", ErrInvalidTimeout, c.CompleteTimeout)
	}

	// PostgreSQL validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
