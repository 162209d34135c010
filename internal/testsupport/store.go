package testsupport

import (
	"context"
	"testing"

	"signscribe/internal/config"
	"signscribe/internal/docstore"
)

// MustOpenStore opens the configured document store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *docstore.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := docstore.Open(context.Background(), cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustSet writes a document or fails the test.
func MustSet(t testing.TB, store *docstore.Store, collection, id string, data any) {
	t.Helper()
	if err := store.Set(context.Background(), collection, id, data); err != nil {
		t.Fatalf("set %s/%s: %v", collection, id, err)
	}
}
