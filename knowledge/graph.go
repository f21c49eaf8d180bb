package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Application is the provenance view of a persisted draft: which grant it
// targets and which sources fed its corpus.
type Application struct {
	ID        string
	UserID    string
	Title     string
	GrantName string
	Sources   []Source
}

type Source struct {
	Label   string
	Kind    string
	Locator string
	// Failed marks sources that were attempted but produced no text.
	Failed bool
}

func SyncApplication(ctx context.Context, driver neo4j.DriverWithContext, app Application) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}
	if app.ID == "" {
		return fmt.Errorf("application id is empty")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":      app.ID,
		"user_id": app.UserID,
		"title":   app.Title,
		"grant":   app.GrantName,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (a:Application {id: $id})
			SET a.title = $title,
			    a.user_id = $user_id,
			    a.updated_at = datetime()
			MERGE (u:User {id: $user_id})
			MERGE (u)-[:SUBMITTED]->(a)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert application node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (a:Application {id: $id})-[r:TARGETS]->(:Grant)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale grant relation: %w", err)
		}
		if app.GrantName != "" {
			if _, err := tx.Run(ctx, `
				MATCH (a:Application {id: $id})
				MERGE (g:Grant {name: $grant})
				MERGE (a)-[:TARGETS]->(g)
			`, params); err != nil {
				return nil, fmt.Errorf("upsert grant relation: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (a:Application {id: $id})-[r:USED_SOURCE]->(:Source)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("clear existing source relations: %w", err)
		}

		for i, src := range app.Sources {
			key := src.Locator
			if key == "" {
				key = src.Label
			}
			if _, err := tx.Run(ctx, `
				MATCH (a:Application {id: $app_id})
				MERGE (s:Source {key: $key})
				SET s.label = $label,
				    s.kind = $kind
				MERGE (a)-[r:USED_SOURCE {order: $order}]->(s)
				SET r.failed = $failed
			`, map[string]any{
				"app_id": app.ID,
				"key":    key,
				"label":  src.Label,
				"kind":   src.Kind,
				"order":  i,
				"failed": src.Failed,
			}); err != nil {
				return nil, fmt.Errorf("upsert source relation: %w", err)
			}
		}

		return nil, nil
	})

	if err == nil {
		if _, cleanupErr := session.Run(ctx, `
			MATCH (s:Source)
			WHERE NOT (s)<-[:USED_SOURCE]-(:Application)
			DELETE s
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// Purge removes every node this package writes.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (n)
			WHERE n:Application OR n:Grant OR n:Source OR n:User
			DETACH DELETE n
		`, nil); err != nil {
			return nil, fmt.Errorf("delete graph nodes: %w", err)
		}
		return nil, nil
	})
	return err
}
