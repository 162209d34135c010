package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"signscribe/internal/docstore"
	"signscribe/internal/logging"
)

// Collection holds lesson video documents.
const Collection = "videos"

// DefaultPageSize matches the learning page grid.
const DefaultPageSize = 6

// Video is one lesson entry.
type Video struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
	Level       string `json:"level,omitempty" yaml:"level"`
	VideoURL    string `json:"video_url,omitempty" yaml:"video_url"`
}

// Query selects a page of videos. Page is 1-based; zero values take defaults.
type Query struct {
	Search   string
	Category string
	Page     int
	PageSize int
}

// Page is one result page.
type Page struct {
	Items      []Video `json:"items"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// Reader is the document access the catalog needs.
type Reader interface {
	Documents(ctx context.Context, collection string) ([]docstore.Document, error)
}

// Catalog answers video queries.
type Catalog struct {
	store    Reader
	pageSize int
	logger   *slog.Logger
}

// New builds a catalog. pageSize <= 0 selects DefaultPageSize.
func New(store Reader, pageSize int, logger *slog.Logger) *Catalog {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Catalog{store: store, pageSize: pageSize, logger: logging.NewComponentLogger(logger, "catalog")}
}

// List returns the page of videos matching q, ordered by title.
func (c *Catalog) List(ctx context.Context, q Query) (Page, error) {
	videos, err := c.all(ctx)
	if err != nil {
		return Page{}, err
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	category := strings.TrimSpace(q.Category)
	matched := videos[:0]
	for _, v := range videos {
		if category != "" && !strings.EqualFold(strings.TrimSpace(v.Category), category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(v.Title), search) &&
			!strings.Contains(strings.ToLower(v.Description), search) {
			continue
		}
		matched = append(matched, v)
	}

	size := q.PageSize
	if size <= 0 {
		size = c.pageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	total := len(matched)
	result := Page{
		Items:      []Video{},
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
	start := (page - 1) * size
	if start < total {
		end := min(start+size, total)
		result.Items = append(result.Items, matched[start:end]...)
	}
	return result, nil
}

// Categories returns the distinct categories, title-cased and sorted.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	videos, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	caser := cases.Title(language.English)
	seen := make(map[string]struct{})
	var out []string
	for _, v := range videos {
		name := strings.TrimSpace(v.Category)
		if name == "" {
			continue
		}
		name = caser.String(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Catalog) all(ctx context.Context) ([]Video, error) {
	docs, err := c.store.Documents(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	videos := make([]Video, 0, len(docs))
	for _, doc := range docs {
		var v Video
		if err := doc.Decode(&v); err != nil {
			logging.WarnWithContext(c.logger, "skipping malformed video", "video_decode_failed",
				logging.String("video_id", doc.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "video hidden from catalog"),
			)
			continue
		}
		v.ID = doc.ID
		videos = append(videos, v)
	}
	sort.SliceStable(videos, func(i, j int) bool {
		ti, tj := strings.ToLower(videos[i].Title), strings.ToLower(videos[j].Title)
		if ti != tj {
			return ti < tj
		}
		return videos[i].ID < videos[j].ID
	})
	return videos, nil
}
