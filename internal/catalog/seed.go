package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"signscribe/internal/docstore"
)

// Batcher opens write batches.
type Batcher interface {
	NewBatch() *docstore.Batch
}

// ParseSeed reads a YAML list of videos. Every entry needs an id and a title.
func ParseSeed(r io.Reader) ([]Video, error) {
	var videos []Video
	if err := yaml.NewDecoder(r).Decode(&videos); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	seen := make(map[string]struct{}, len(videos))
	for i, v := range videos {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return nil, fmt.Errorf("seed entry %d: id is required", i+1)
		}
		if strings.TrimSpace(v.Title) == "" {
			return nil, fmt.Errorf("seed entry %s: title is required", id)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("seed entry %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		videos[i].ID = id
	}
	return videos, nil
}

// Seed upserts the videos in r and returns how many were written.
func Seed(ctx context.Context, store Batcher, r io.Reader) (int, error) {
	videos, err := ParseSeed(r)
	if err != nil {
		return 0, err
	}
	batch := store.NewBatch()
	written := 0
	for _, v := range videos {
		if err := batch.Set(Collection, v.ID, v); err != nil {
			return written, err
		}
		if batch.Len() == docstore.MaxBatchSize {
			n := batch.Len()
			if err := batch.Commit(ctx); err != nil {
				return written, fmt.Errorf("commit videos: %w", err)
			}
			written += n
		}
	}
	if n := batch.Len(); n > 0 {
		if err := batch.Commit(ctx); err != nil {
			return written, fmt.Errorf("commit videos: %w", err)
		}
		written += n
	}
	return written, nil
}

//go:embed default_videos.yaml
var defaultVideos []byte

// DefaultSeed returns the built-in lesson list.
func DefaultSeed() io.Reader {
	return bytes.NewReader(defaultVideos)
}

// SeedIfEmpty loads r only when the videos collection has no documents.
func SeedIfEmpty(ctx context.Context, store interface {
	Batcher
	Count(ctx context.Context, collection string) (int, error)
}, r io.Reader) (int, error) {
	n, err := store.Count(ctx, Collection)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	return Seed(ctx, store, r)
}
