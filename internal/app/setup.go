package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/devsharma/sakhi/db"
	"github.com/devsharma/sakhi/internal/chat"
	"github.com/devsharma/sakhi/internal/config"
	"github.com/devsharma/sakhi/internal/database"
	"github.com/devsharma/sakhi/internal/ingest"
	"github.com/devsharma/sakhi/internal/knowledge"
	"github.com/devsharma/sakhi/internal/security"
	"github.com/devsharma/sakhi/internal/session"
)

// completionsPerSecond caps model calls across retries so a retry storm
// cannot burn through provider quota.
const completionsPerSecond = 2

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	knowledgeEmbedder := knowledge.NewEmbedder(embedder, cfg.EmbedderDimension, cfg.EmbedTimeout)
	index := knowledge.NewPGIndex(pool, cfg.EmbedderDimension, logger)
	a.Knowledge = knowledge.NewStore(knowledgeEmbedder, index, cfg.QueryTimeout, logger)

	splitter, err := ingest.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("creating splitter: %w", err)
	}
	a.Ingestor, err = ingest.New(ingest.Config{
		Embedder:    knowledgeEmbedder,
		Index:       index,
		Splitter:    splitter,
		Concurrency: cfg.IngestConcurrency,
		Retries:     cfg.IngestRetries,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	sessionDB, err := provideSessionDB(cfg)
	if err != nil {
		return nil, err
	}
	a.SessionDB = sessionDB
	a.Sessions = session.NewStore(sessionDB, logger)

	a.Pipeline, err = providePipeline(a, logger)
	if err != nil {
		return nil, err
	}

	a.Filter = security.NewFilter(cfg.Denylist, cfg.CannedReply)

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default) and ollama.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini / googleai
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit)
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool
// backing the vector index.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideSessionDB opens the local SQLite database for conversation
// sessions and applies its migrations.
func provideSessionDB(cfg *config.Config) (*sql.DB, error) {
	sdb, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	if err := database.Migrate(sdb); err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("migrating session database: %w", err)
	}
	return sdb, nil
}

// providePipeline wires the rewriter, retriever, and generator around a
// shared rate-limited completer.
func providePipeline(a *App, logger *slog.Logger) (*chat.Pipeline, error) {
	cfg := a.Config

	limiter := rate.NewLimiter(rate.Limit(completionsPerSecond), completionsPerSecond)
	completer, err := chat.NewGenkitCompleter(a.Genkit, cfg.FullModelName(),
		chat.DefaultRetryConfig(), limiter, logger)
	if err != nil {
		return nil, fmt.Errorf("creating completer: %w", err)
	}

	rewriter, err := chat.NewRewriter(completer, cfg.CompleteTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating rewriter: %w", err)
	}
	generator, err := chat.NewGenerator(completer, cfg.Persona, cfg.CompleteTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	return chat.NewPipeline(chat.PipelineConfig{
		Rewriter:  rewriter,
		Searcher:  a.Knowledge,
		Generator: generator,
		Sessions:  a.Sessions,
		TopK:      cfg.TopK,
		Logger:    logger,
	})
}
