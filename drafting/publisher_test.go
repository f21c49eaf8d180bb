package drafting_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/grant-drafter/database"
	"github.com/fabfab/grant-drafter/drafting"
	"github.com/fabfab/grant-drafter/storage"
)

type memoryApps struct {
	bySession map[string]database.Application
	saves     int
}

func (m *memoryApps) Save(ctx context.Context, app database.Application) (database.Application, error) {
	m.saves++
	if m.bySession == nil {
		m.bySession = map[string]database.Application{}
	}
	if prev, ok := m.bySession[app.SessionID]; ok {
		app.ID = prev.ID
	} else if app.ID == "" {
		app.ID = "app-" + app.SessionID
	}
	m.bySession[app.SessionID] = app
	return app, nil
}

func (m *memoryApps) ListByUser(ctx context.Context, userID string, limit int) ([]database.Application, error) {
	var out []database.Application
	for _, app := range m.bySession {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *memoryApps) Similar(ctx context.Context, userID string, embedding []float32, limit int) ([]database.ScoredApplication, error) {
	return nil, nil
}

func (m *memoryApps) Clear(ctx context.Context) (int64, error) {
	n := len(m.bySession)
	m.bySession = nil
	return int64(n), nil
}

var _ database.ApplicationStore = (*memoryApps)(nil)

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestPublishReplacesPreviousDraft(t *testing.T) {
	dir := t.TempDir()
	docs, err := storage.NewLocalStore(dir, "/documents")
	require.NoError(t, err)
	apps := &memoryApps{}
	pub := drafting.NewPublisher(docs, apps, failingEmbedder{}, nil, nil)

	ctx := context.Background()
	first, err := pub.Publish(ctx, drafting.PublishRequest{
		UserID: "u1", SessionID: "s1",
		Draft: drafting.Draft{Title: "2024 Innovate Grant", Body: "1. Q?\n   first"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/documents/s1.html", first.DocumentURL)
	assert.Empty(t, first.Embedding)

	second, err := pub.Publish(ctx, drafting.PublishRequest{
		UserID: "u1", SessionID: "s1",
		Draft: drafting.Draft{Title: "2024 Innovate Grant", Body: "1. Q?\n   second"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	listed, err := apps.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Contains(t, listed[0].Body, "second")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	page, err := os.ReadFile(filepath.Join(dir, "s1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "second")
}

func TestPublishRequiresStore(t *testing.T) {
	pub := drafting.NewPublisher(nil, nil, nil, nil, nil)
	_, err := pub.Publish(context.Background(), drafting.PublishRequest{SessionID: "s1"})
	assert.Error(t, err)
}
