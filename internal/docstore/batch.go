package docstore

import (
	"context"
	"fmt"
	"time"
)

type batchWrite struct {
	collection string
	id         string
	payload    []byte
}

// Batch accumulates document writes that commit atomically.
type Batch struct {
	store  *Store
	writes []batchWrite
}

// NewBatch starts an empty write batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s}
}

// Set queues an upsert. The payload is encoded immediately so malformed data
// is reported before commit.
func (b *Batch) Set(collection, id string, data any) error {
	payload, err := encodeData(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	b.writes = append(b.writes, batchWrite{collection: collection, id: id, payload: payload})
	return nil
}

// Len reports the number of queued writes.
func (b *Batch) Len() int {
	return len(b.writes)
}

// Commit applies every queued write in one transaction and empties the batch.
func (b *Batch) Commit(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if len(b.writes) == 0 {
		return nil
	}
	if len(b.writes) > MaxBatchSize {
		return fmt.Errorf("%w: %d queued", ErrBatchTooLarge, len(b.writes))
	}
	s := b.store
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin batch tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		for _, w := range b.writes {
			if err := s.upsert(ctx, tx, w.collection, w.id, w.payload, now); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.writes = b.writes[:0]
	return nil
}
