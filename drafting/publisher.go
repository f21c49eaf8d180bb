package drafting

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fabfab/grant-drafter/database"
	"github.com/fabfab/grant-drafter/embeddings"
	"github.com/fabfab/grant-drafter/ingestion"
	"github.com/fabfab/grant-drafter/knowledge"
)

// DocumentStore persists a rendered document and returns the URL it is
// reachable at.
type DocumentStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// PublishRequest is one finished draft plus the context it came from.
type PublishRequest struct {
	UserID    string
	SessionID string
	GrantName string
	Draft     Draft
	Sources   []ingestion.Extraction
}

// Publisher records finished drafts: rendered document, history row and, when
// a graph driver is configured, provenance. Only the history row is required;
// embedding and graph failures are logged and skipped.
type Publisher struct {
	docs     DocumentStore
	apps     database.ApplicationStore
	embedder embeddings.Embedder
	graph    neo4j.DriverWithContext
	logger   *zap.Logger
}

func NewPublisher(docs DocumentStore, apps database.ApplicationStore, embedder embeddings.Embedder, graph neo4j.DriverWithContext, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{docs: docs, apps: apps, embedder: embedder, graph: graph, logger: logger}
}

// Publish stores the draft for req.SessionID. Publishing the same session
// again replaces the previous document and row rather than adding new ones.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (database.Application, error) {
	if p.apps == nil {
		return database.Application{}, fmt.Errorf("application store is not configured")
	}
	if req.SessionID == "" {
		return database.Application{}, fmt.Errorf("session id is empty")
	}

	app := database.Application{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Title:     req.Draft.Title,
		Body:      req.Draft.Body,
	}

	if p.docs != nil {
		page, err := RenderHTML(req.Draft)
		if err != nil {
			return database.Application{}, err
		}
		url, err := p.docs.Put(ctx, req.SessionID+".html", page)
		if err != nil {
			return database.Application{}, fmt.Errorf("store rendered document: %w", err)
		}
		app.DocumentURL = url
	}

	if p.embedder != nil {
		vectors, err := p.embedder.Embed(ctx, []string{req.Draft.Title + "\n\n" + req.Draft.Body})
		switch {
		case err != nil:
			p.logger.Warn("draft embedding failed", zap.Error(err))
		case len(vectors) == 1:
			app.Embedding = vectors[0]
		}
	}

	saved, err := p.apps.Save(ctx, app)
	if err != nil {
		return database.Application{}, fmt.Errorf("save application: %w", err)
	}

	if p.graph != nil {
		if err := knowledge.SyncApplication(ctx, p.graph, provenance(saved, req)); err != nil {
			p.logger.Warn("application graph sync failed", zap.String("application_id", saved.ID), zap.Error(err))
		}
	}

	p.logger.Info("application published",
		zap.String("application_id", saved.ID),
		zap.String("session_id", saved.SessionID),
		zap.String("title", saved.Title),
	)
	return saved, nil
}

func provenance(app database.Application, req PublishRequest) knowledge.Application {
	grant := req.GrantName
	if grant == "" && app.Title != DefaultTitle && app.Title != UnknownTitle {
		grant = app.Title
	}

	sources := make([]knowledge.Source, 0, len(req.Sources))
	for _, src := range req.Sources {
		sources = append(sources, knowledge.Source{
			Label:   src.Label,
			Kind:    string(src.Source.Kind),
			Locator: src.Source.Locator,
			Failed:  src.Failed(),
		})
	}

	return knowledge.Application{
		ID:        app.ID,
		UserID:    app.UserID,
		Title:     app.Title,
		GrantName: grant,
		Sources:   sources,
	}
}
