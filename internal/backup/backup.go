package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"signscribe/internal/docstore"
	"signscribe/internal/fileutil"
	"signscribe/internal/logging"
)

const (
	// Prefix marks snapshot directories.
	Prefix = "backup-"
	// DefaultBatchSize is the restore batch size used when none is configured.
	DefaultBatchSize = docstore.MaxBatchSize

	fileExt = ".json"
)

var (
	// ErrSnapshotNotFound is returned when the requested snapshot folder does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrEmptySnapshot is returned when a snapshot folder holds no collection files.
	ErrEmptySnapshot = errors.New("snapshot contains no collection files")
)

// Source lists and reads collections.
type Source interface {
	ListCollections(ctx context.Context) ([]string, error)
	Documents(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Snapshot describes a completed backup.
type Snapshot struct {
	Name        string
	Path        string
	Collections map[string]int
	Skipped     []string
}

// Documents returns the total number of exported documents.
func (s Snapshot) Documents() int {
	total := 0
	for _, n := range s.Collections {
		total += n
	}
	return total
}

// FolderName returns the snapshot directory name for a point in time.
func FolderName(now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	return Prefix + strings.ReplaceAll(stamp, ":", "-")
}

// Backup writes every collection from src into a new snapshot folder under dir.
// Empty collections are logged and produce no file.
func Backup(ctx context.Context, src Source, dir string, now time.Time, logger *slog.Logger) (Snapshot, error) {
	logger = logging.NewComponentLogger(logger, "backup")
	if src == nil {
		return Snapshot{}, errors.New("backup source is nil")
	}

	name := FolderName(now)
	folder := filepath.Join(dir, name)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("create snapshot folder: %w", err)
	}

	collections, err := src.ListCollections(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list collections: %w", err)
	}

	snap := Snapshot{Name: name, Path: folder, Collections: make(map[string]int, len(collections))}
	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		logger.Info("backing up collection", logging.String(logging.FieldCollection, collection))

		docs, err := src.Documents(ctx, collection)
		if err != nil {
			return snap, fmt.Errorf("read collection %s: %w", collection, err)
		}
		if len(docs) == 0 {
			logger.Info("collection empty; skipped",
				logging.String(logging.FieldCollection, collection),
				logging.String(logging.FieldEventType, "collection_empty"),
			)
			snap.Skipped = append(snap.Skipped, collection)
			continue
		}
		if err := writeCollection(filepath.Join(folder, collection+fileExt), docs); err != nil {
			return snap, fmt.Errorf("write collection %s: %w", collection, err)
		}
		snap.Collections[collection] = len(docs)
		logger.Info("collection backed up",
			logging.String(logging.FieldCollection, collection),
			logging.Int("documents", len(docs)),
		)
	}

	logger.Info("backup completed",
		logging.String("path", folder),
		logging.Int("collections", len(snap.Collections)),
		logging.Int("documents", snap.Documents()),
	)
	return snap, nil
}

func writeCollection(path string, docs []docstore.Document) error {
	encoded, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode documents: %w", err)
	}
	return fileutil.WriteFileAtomic(path, encoded, 0o644)
}
