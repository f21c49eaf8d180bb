package knowledge_test

import (
	"context"
	"testing"

	"github.com/fabfab/grant-drafter/knowledge"
)

func TestSyncApplicationNilDriver(t *testing.T) {
	if err := knowledge.SyncApplication(context.Background(), nil, knowledge.Application{ID: "a1"}); err == nil {
		t.Fatal("expected error when driver is nil")
	}
}

func TestPurgeNilDriver(t *testing.T) {
	if err := knowledge.Purge(context.Background(), nil); err == nil {
		t.Fatal("expected error when driver is nil")
	}
}
