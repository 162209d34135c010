package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite selects the embedded SQLite backend.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL backend.
	DriverPostgres = "postgres"

	// MaxBatchSize is the largest number of writes a single batch may carry.
	MaxBatchSize = 500
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize writes.
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d writes", MaxBatchSize)
	// ErrNotObject is returned when a document payload is not a JSON object.
	ErrNotObject = errors.New("document data must be a JSON object")
)

// Document is a single record within a collection.
type Document struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Store manages document persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the document database and initializes the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	ctx = ensureContext(ctx)
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("sqlite dsn is required")
		}
		if !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("ensure database directory: %w", err)
			}
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	} else if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: db, driver: driver}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the backend the store runs on.
func (s *Store) Driver() string {
	return s.driver
}

// CreateCollection registers a collection so it is listed even while empty.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(name) == "" {
		return errors.New("collection name is required")
	}
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, s.rebind(registerCollectionSQL), name, time.Now().UTC()); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		return nil
	})
}

// ListCollections returns the sorted names of every known collection,
// including collections whose documents have all been deleted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Documents returns every document in a collection ordered by id.
func (s *Store) Documents(ctx context.Context, collection string) ([]Document, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, data FROM documents WHERE collection = ? ORDER BY id`),
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents in %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(1) FROM documents WHERE collection = ?`),
		collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Get fetches a single document.
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, data FROM documents WHERE collection = ? AND id = ?`),
		collection, id,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set creates or replaces a document.
func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	ctx = ensureContext(ctx)
	payload, err := encodeData(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin set tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := s.upsert(ctx, tx, collection, id, payload, time.Now().UTC()); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`),
			collection, id,
		)
		if execErr != nil {
			return fmt.Errorf("delete %s/%s: %w", collection, id, execErr)
		}
		return nil
	})
}

// Find returns the documents whose top-level field equals value.
func (s *Store) Find(ctx context.Context, collection, field string, value any) ([]Document, error) {
	want, err := normalizeValue(value)
	if err != nil {
		return nil, fmt.Errorf("encode match value: %w", err)
	}
	docs, err := s.Documents(ctx, collection)
	if err != nil {
		return nil, err
	}
	var matches []Document
	for _, doc := range docs {
		var fields map[string]any
		if err := json.Unmarshal(doc.Data, &fields); err != nil {
			continue
		}
		got, ok := fields[field]
		if ok && reflect.DeepEqual(got, want) {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

const (
	upsertSQL = `INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`
	registerCollectionSQL = `INSERT INTO collections (name, created_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`
)

func (s *Store) upsert(ctx context.Context, tx *sql.Tx, collection, id string, payload []byte, now time.Time) error {
	if _, err := tx.ExecContext(ctx, s.rebind(registerCollectionSQL), collection, now); err != nil {
		return fmt.Errorf("register collection %s: %w", collection, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(upsertSQL), collection, id, string(payload), now); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (Document, error) {
	var (
		id   string
		data []byte
	)
	if err := scanner.Scan(&id, &data); err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: json.RawMessage(data)}, nil
}

func encodeData(data any) ([]byte, error) {
	var payload []byte
	switch v := data.(type) {
	case json.RawMessage:
		payload = v
	case []byte:
		payload = v
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		payload = encoded
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' || !json.Valid(payload) {
		return nil, ErrNotObject
	}
	return payload, nil
}

func normalizeValue(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// rebind rewrites '?' placeholders into PostgreSQL's positional form.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
