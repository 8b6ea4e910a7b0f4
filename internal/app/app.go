// Package app provides application initialization and dependency wiring.
//
// App is the container that owns every long-lived component: Genkit, the
// PostgreSQL pool behind the vector index, the SQLite session store, the
// knowledge store, the ingestor, and the conversation pipeline. Setup
// builds it; Close releases it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devsharma/sakhi/internal/chat"
	"github.com/devsharma/sakhi/internal/config"
	"github.com/devsharma/sakhi/internal/ingest"
	"github.com/devsharma/sakhi/internal/knowledge"
	"github.com/devsharma/sakhi/internal/security"
	"github.com/devsharma/sakhi/internal/session"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	SessionDB *sql.DB

	Knowledge *knowledge.Store
	Ingestor  *ingest.Ingestor
	Sessions  session.Repository
	Pipeline  *chat.Pipeline
	Filter    *security.Filter

	logger *slog.Logger
	cancel context.CancelFunc
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.logger != nil {
		a.logger.Info("shutting down application")
	}

	if a.cancel != nil {
		a.cancel()
	}

	var errs []error
	if a.SessionDB != nil {
		if err := a.SessionDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return errors.Join(errs...)
}
