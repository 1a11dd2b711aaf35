package testsupport

import (
	"context"
	"testing"

	"windsentry/internal/config"
	"windsentry/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewDataset creates a new dataset item for tests using the provided store.
func NewDataset(t testing.TB, store *queue.Store, sourcePath, turbineID string) *queue.Item {
	t.Helper()

	item, err := store.NewDataset(context.Background(), sourcePath, turbineID)
	if err != nil {
		t.Fatalf("store.NewDataset: %v", err)
	}
	return item
}
