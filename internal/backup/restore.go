package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"signscribe/internal/docstore"
	"signscribe/internal/logging"
)

// Target receives restored documents.
type Target interface {
	CreateCollection(ctx context.Context, name string) error
	NewBatch() *docstore.Batch
}

// RestoreReport summarizes a restore run.
type RestoreReport struct {
	Snapshot string
	Restored map[string]int
	Failed   map[string]error
	Batches  int
}

// Restore loads the named snapshot from dir into dst. Each collection file is
// written in batches of batchSize documents; a collection that fails is
// logged and recorded and the remaining files are still restored.
func Restore(ctx context.Context, dst Target, dir, name string, batchSize int, logger *slog.Logger) (RestoreReport, error) {
	logger = logging.NewComponentLogger(logger, "restore")
	if batchSize <= 0 || batchSize > docstore.MaxBatchSize {
		batchSize = DefaultBatchSize
	}

	folder, err := Resolve(dir, name)
	if err != nil {
		return RestoreReport{}, err
	}
	files, err := collectionFiles(folder)
	if err != nil {
		return RestoreReport{}, err
	}
	if len(files) == 0 {
		return RestoreReport{}, fmt.Errorf("%w: %s", ErrEmptySnapshot, name)
	}

	report := RestoreReport{
		Snapshot: name,
		Restored: make(map[string]int, len(files)),
		Failed:   make(map[string]error),
	}
	logger.Info("restoring snapshot", logging.String("snapshot", name), logging.Int("collections", len(files)))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		collection := strings.TrimSuffix(filepath.Base(file), fileExt)
		batches, count, err := restoreCollection(ctx, dst, collection, file, batchSize, logger)
		report.Batches += batches
		if err != nil {
			logging.ErrorWithContext(logger, "collection restore failed", "collection_restore_failed",
				logging.String(logging.FieldCollection, collection),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the snapshot file and rerun restore"),
			)
			report.Failed[collection] = err
			continue
		}
		report.Restored[collection] = count
		logger.Info("collection restored",
			logging.String(logging.FieldCollection, collection),
			logging.Int("documents", count),
		)
	}

	logger.Info("restore completed",
		logging.String("snapshot", name),
		logging.Int("restored", len(report.Restored)),
		logging.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func restoreCollection(ctx context.Context, dst Target, collection, file string, batchSize int, logger *slog.Logger) (int, int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", filepath.Base(file), err)
	}
	var docs []docstore.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return 0, 0, fmt.Errorf("decode %s: %w", filepath.Base(file), err)
	}

	logger.Info("restoring collection",
		logging.String(logging.FieldCollection, collection),
		logging.Int("documents", len(docs)),
	)
	if err := dst.CreateCollection(ctx, collection); err != nil {
		return 0, 0, err
	}

	total := (len(docs) + batchSize - 1) / batchSize
	committed := 0
	for i := 0; i < len(docs); i += batchSize {
		chunk := docs[i:min(i+batchSize, len(docs))]
		batch := dst.NewBatch()
		for _, doc := range chunk {
			if strings.TrimSpace(doc.ID) == "" {
				return committed, i, fmt.Errorf("document without id in %s", filepath.Base(file))
			}
			if err := batch.Set(collection, doc.ID, doc.Data); err != nil {
				return committed, i, err
			}
		}
		if err := batch.Commit(ctx); err != nil {
			return committed, i, err
		}
		committed++
		logger.Info(fmt.Sprintf("restored batch %d of %d", committed, total),
			logging.String(logging.FieldCollection, collection),
		)
	}
	return committed, len(docs), nil
}
