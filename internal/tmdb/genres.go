package tmdb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// GenreLister is the slice of Client the cache needs.
type GenreLister interface {
	Genres(ctx context.Context, contentType string) (map[int64]string, error)
}

// GenreCache resolves genre ids to names, fetching each content type's table
// at most once. It is owned by the run context, not shared across runs, so a
// stale table never outlives a run. A failed fetch falls back to the built-in
// table and is never surfaced as an error.
type GenreCache struct {
	client GenreLister
	log    *zap.Logger
	tables map[string]map[int64]string
}

// NewGenreCache creates an empty per-run genre cache.
func NewGenreCache(client GenreLister, log *zap.Logger) *GenreCache {
	return &GenreCache{
		client: client,
		log:    log,
		tables: make(map[string]map[int64]string),
	}
}

// Names resolves genre ids for contentType, preserving input order.
// Unknown ids map to "Unknown_Genre_<id>".
func (g *GenreCache) Names(ctx context.Context, contentType string, ids []int64) []string {
	table := g.table(ctx, contentType)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := table[id]
		if !ok {
			name = fmt.Sprintf("Unknown_Genre_%d", id)
		}
		names = append(names, name)
	}
	return names
}

// Name resolves a single genre id for contentType.
func (g *GenreCache) Name(ctx context.Context, contentType string, id int64) string {
	if name, ok := g.table(ctx, contentType)[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown_Genre_%d", id)
}

func (g *GenreCache) table(ctx context.Context, contentType string) map[int64]string {
	if table, ok := g.tables[contentType]; ok {
		return table
	}

	table, err := g.client.Genres(ctx, contentType)
	if err != nil || len(table) == 0 {
		g.log.Debug("genre list fetch failed, using built-in table",
			zap.String("content_type", contentType), zap.Error(err))
		table = fallbackGenres
	}
	g.tables[contentType] = table
	return table
}

// fallbackGenres is the TMDB genre table snapshot used when the live genre
// endpoint is unavailable. Covers both movie and TV ids.
var fallbackGenres = map[int64]string{
	28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
	99: "Documentary", 18: "Drama", 10751: "Family", 14: "Fantasy", 36: "History",
	27: "Horror", 10402: "Music", 9648: "Mystery", 10749: "Romance", 878: "Science Fiction",
	10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	10759: "Action & Adventure", 10762: "Kids", 10763: "News", 10764: "Reality",
	10765: "Sci-Fi & Fantasy", 10766: "Soap", 10767: "Talk", 10768: "War & Politics",
}
