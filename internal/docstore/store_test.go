package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"signscribe/internal/docstore"
)

func openTestStore(t *testing.T) *docstore.Store {
	t.Helper()
	store, err := docstore.Open(context.Background(), docstore.DriverSQLite, filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.Set(ctx, "videos", "v1", map[string]any{"title": "Greetings", "level": 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc, err := store.Get(ctx, "videos", "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var payload struct {
		Title string `json:"title"`
		Level int    `json:"level"`
	}
	if err := doc.Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.ID != "v1" || payload.Title != "Greetings" || payload.Level != 1 {
		t.Fatalf("unexpected document %+v / %+v", doc, payload)
	}

	if err := store.Set(ctx, "videos", "v1", map[string]any{"title": "Numbers"}); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	doc, err = store.Get(ctx, "videos", "v1")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if err := doc.Decode(&payload); err != nil || payload.Title != "Numbers" {
		t.Fatalf("expected overwrite, got %+v (%v)", payload, err)
	}

	if err := store.Delete(ctx, "videos", "v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "videos", "v1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "videos", "missing"); err != nil {
		t.Fatalf("Delete missing should succeed, got %v", err)
	}
}

func TestSetRejectsNonObject(t *testing.T) {
	store := openTestStore(t)
	for _, data := range []any{"text", 42, []int{1, 2}, nil} {
		if err := store.Set(context.Background(), "c", "id", data); !errors.Is(err, docstore.ErrNotObject) {
			t.Fatalf("Set(%v) error = %v, want ErrNotObject", data, err)
		}
	}
}

func TestListCollectionsAndDocumentsOrdered(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, w := range []struct{ collection, id string }{
		{"users", "b"}, {"users", "a"}, {"videos", "z"}, {"alerts", "1"},
	} {
		if err := store.Set(ctx, w.collection, w.id, map[string]string{"id": w.id}); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if fmt.Sprint(names) != "[alerts users videos]" {
		t.Fatalf("unexpected collections %v", names)
	}

	docs, err := store.Documents(ctx, "users")
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if n, err := store.Count(ctx, "users"); err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestFindMatchesTopLevelField(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_ = store.Set(ctx, "users", "1", map[string]any{"email": "a@example.com", "age": 30})
	_ = store.Set(ctx, "users", "2", map[string]any{"email": "b@example.com", "age": 30})

	matches, err := store.Find(ctx, "users", "email", "b@example.com")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "2" {
		t.Fatalf("unexpected matches %+v", matches)
	}

	matches, err = store.Find(ctx, "users", "age", 30)
	if err != nil {
		t.Fatalf("Find numeric: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 numeric matches, got %d", len(matches))
	}
}

func TestBatchCommit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	batch := store.NewBatch()
	for i := range 3 {
		if err := batch.Set("videos", fmt.Sprintf("v%d", i), map[string]int{"n": i}); err != nil {
			t.Fatalf("batch Set: %v", err)
		}
	}
	if batch.Len() != 3 {
		t.Fatalf("Len = %d", batch.Len())
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if batch.Len() != 0 {
		t.Fatalf("expected batch to be emptied after commit")
	}
	if n, _ := store.Count(ctx, "videos"); n != 3 {
		t.Fatalf("expected 3 documents, got %d", n)
	}
}

func TestBatchRejectsOversize(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	batch := store.NewBatch()
	for i := range docstore.MaxBatchSize + 1 {
		if err := batch.Set("bulk", fmt.Sprintf("d%04d", i), map[string]int{"n": i}); err != nil {
			t.Fatalf("batch Set: %v", err)
		}
	}
	if err := batch.Commit(ctx); !errors.Is(err, docstore.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if n, _ := store.Count(ctx, "bulk"); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}
}

func TestOpenReusesExistingSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "docs.db")
	store, err := docstore.Open(ctx, docstore.DriverSQLite, path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := store.Set(ctx, "c", "1", map[string]int{"x": 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = store.Close()

	reopened, err := docstore.Open(ctx, docstore.DriverSQLite, path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(ctx, "c", "1"); err != nil {
		t.Fatalf("expected document to survive reopen: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := docstore.Open(context.Background(), "mysql", "dsn"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestEmptyCollectionsRemainListed(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.CreateCollection(ctx, "drafts"); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := store.Set(ctx, "users", "1", map[string]string{"name": "A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Delete(ctx, "users", "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if fmt.Sprint(names) != "[drafts users]" {
		t.Fatalf("unexpected collections %v", names)
	}
	docs, err := store.Documents(ctx, "drafts")
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected no documents, got %v (%v)", docs, err)
	}
}
