package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/api"
	"github.com/fabfab/grant-drafter/config"
	"github.com/fabfab/grant-drafter/database"
	"github.com/fabfab/grant-drafter/drafting"
	"github.com/fabfab/grant-drafter/elicitation"
	"github.com/fabfab/grant-drafter/embeddings"
	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/llm"
	"github.com/fabfab/grant-drafter/storage"
)

// app holds the long-lived clients shared by the serve, interview, history
// and clear commands.
type app struct {
	logger *zap.Logger

	llm          llm.Client
	embedder     embeddings.Embedder
	ingestion    *ingestion.Service
	synthesizer  *elicitation.Synthesizer
	drafter      *drafting.Drafter
	budget       *drafting.BudgetAnalyzer
	publisher    *drafting.Publisher
	applications database.ApplicationStore
	documents    *storage.LocalStore
	graph        neo4j.DriverWithContext

	pool   *pgxpool.Pool
	sqlite *sql.DB
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{logger: logger}

	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, err
	}
	a.llm = client

	policy, err := config.LoadPromptPolicy(cfg.PromptPolicyFile)
	if err != nil {
		return nil, err
	}

	if cfg.Embeddings.Provider != "" {
		a.embedder, err = embeddings.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("embedder setup: %w", err)
		}
	}

	if err := a.openApplicationStore(ctx, cfg); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if cfg.Neo4jURI != "" {
		a.graph, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("neo4j connection: %w", err)
		}
	}

	a.documents, err = storage.NewLocalStore(cfg.DocumentDir, cfg.DocumentBaseURL)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	titleModel := cfg.LLM.TitleModel
	a.ingestion = newIngestionService(cfg, logger)
	a.synthesizer = elicitation.NewSynthesizer(client, a.embedder, policy, logger)
	a.drafter = drafting.NewDrafter(client, titleModel, logger)
	a.budget = drafting.NewBudgetAnalyzer(client, logger)
	a.publisher = drafting.NewPublisher(a.documents, a.applications, a.embedder, a.graph, logger)

	logger.Info("pipeline ready",
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("embeddings", a.embedder != nil),
		zap.Bool("postgres", a.pool != nil),
		zap.Bool("neo4j", a.graph != nil),
	)
	return a, nil
}

// openApplicationStore prefers Postgres with pgvector and falls back to a
// local SQLite file.
func (a *app) openApplicationStore(ctx context.Context, cfg config.Config) error {
	if cfg.PostgresDSN != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		a.pool = pool
		if err := database.EnsureApplicationSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			return err
		}
		a.applications = database.NewPostgresApplicationStore(pool)
		return nil
	}

	db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	a.sqlite = db
	if err := database.EnsureSQLiteSchema(ctx, db); err != nil {
		return err
	}
	a.applications = database.NewSQLiteApplicationStore(db)
	return nil
}

func (a *app) deps() api.Deps {
	return api.Deps{
		Ingestion:    a.ingestion,
		Synthesizer:  a.synthesizer,
		Sessions:     elicitation.NewStore(),
		Drafter:      a.drafter,
		Budget:       a.budget,
		Publisher:    a.publisher,
		Applications: a.applications,
		Embedder:     a.embedder,
		Documents:    a.documents,
		Graph:        a.graph,
	}
}

func (a *app) Close(ctx context.Context) {
	if a.graph != nil {
		if err := a.graph.Close(ctx); err != nil {
			a.logger.Warn("close neo4j driver", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.logger.Warn("close sqlite", zap.Error(err))
		}
	}
}

func newLLMClient(cfg config.Config) (llm.Client, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}
	return client, nil
}

func newIngestionService(cfg config.Config, logger *zap.Logger) *ingestion.Service {
	client := &http.Client{Timeout: cfg.FetchTimeout}
	return ingestion.NewService(
		ingestion.NewFetcher(client, cfg.MaxFetchBytes),
		ingestion.NewResolver(&http.Client{}, cfg.ReachTimeout, logger),
		logger,
	)
}
