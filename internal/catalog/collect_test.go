package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
	"github.com/couchpilot/couchpilot/internal/tmdb"
)

type mockClient struct {
	configured   bool
	popular      map[int][]tmdb.ListingItem
	discover     []tmdb.ListingItem
	popularPages []int
	detailCalls  int
	genreErr     error
}

func (m *mockClient) IsConfigured() bool { return m.configured }

func (m *mockClient) Popular(_ context.Context, _ string, page int) ([]tmdb.ListingItem, error) {
	m.popularPages = append(m.popularPages, page)
	return m.popular[page], nil
}

func (m *mockClient) Discover(_ context.Context, _ string, _ int, _ int) ([]tmdb.ListingItem, error) {
	return m.discover, nil
}

func (m *mockClient) MovieDetails(_ context.Context, _ int64) (*tmdb.MovieDetails, error) {
	m.detailCalls++
	runtime := 123
	return &tmdb.MovieDetails{Runtime: &runtime, Tagline: "tag"}, nil
}

func (m *mockClient) TVDetails(_ context.Context, _ int64) (*tmdb.TVDetails, error) {
	m.detailCalls++
	seasons := 2
	return &tmdb.TVDetails{EpisodeRunTime: []int{40, 50}, NumberOfSeasons: &seasons, Status: "Returning Series"}, nil
}

func (m *mockClient) Genres(_ context.Context, _ string) (map[int64]string, error) {
	if m.genreErr != nil {
		return nil, m.genreErr
	}
	return map[int64]string{18: "Drama", 35: "Comedy"}, nil
}

func listing(ids []int64, rating float64) []tmdb.ListingItem {
	items := make([]tmdb.ListingItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, tmdb.ListingItem{
			ID:          id,
			Title:       fmt.Sprintf("Movie %d", id),
			GenreIDs:    []int64{18},
			ReleaseDate: "2021-05-01",
			VoteAverage: rating,
			VoteCount:   500,
		})
	}
	return items
}

func newTestCollector(client *mockClient) *Collector {
	c := NewCollector(client, tmdb.NewGenreCache(client, zap.NewNop()), zap.NewNop())
	c.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	c.entropy = func() int64 { return 42 }
	return c
}

func TestCollectDeduplicatesAndBounds(t *testing.T) {
	client := &mockClient{
		configured: true,
		popular: map[int][]tmdb.ListingItem{
			1: listing([]int64{1, 2, 3, 4}, 7.0),
			// Secondary pages overlap primary on purpose.
			2: listing([]int64{3, 4, 5}, 7.0), 3: listing([]int64{3, 4, 5}, 7.0),
			4: listing([]int64{3, 4, 5}, 7.0), 5: listing([]int64{3, 4, 5}, 7.0),
			6: listing([]int64{3, 4, 5}, 7.0), 7: listing([]int64{3, 4, 5}, 7.0),
			8: listing([]int64{3, 4, 5}, 7.0), 9: listing([]int64{3, 4, 5}, 7.0),
			10: listing([]int64{3, 4, 5}, 7.0),
		},
		discover: listing([]int64{5, 6}, 8.5),
	}

	items := newTestCollector(client).Collect(context.Background(), tmdb.TypeMovie, 4, 6.0, false)

	require.LessOrEqual(t, len(items), 4)
	seen := map[int64]bool{}
	for _, it := range items {
		assert.False(t, seen[it.TMDBID], "duplicate id %d", it.TMDBID)
		seen[it.TMDBID] = true
	}
}

func TestCollectFiltersByMinRating(t *testing.T) {
	client := &mockClient{
		configured: true,
		popular: map[int][]tmdb.ListingItem{
			1: append(listing([]int64{1, 2}, 8.0), listing([]int64{3, 4}, 4.0)...),
		},
	}

	items := newTestCollector(client).Collect(context.Background(), tmdb.TypeMovie, 10, 6.0, false)

	require.Len(t, items, 2)
	for _, it := range items {
		assert.GreaterOrEqual(t, it.VoteAverage, 6.0)
	}
}

func TestCollectDetailLookupsBoundedByMaxResults(t *testing.T) {
	client := &mockClient{
		configured: true,
		popular: map[int][]tmdb.ListingItem{
			1: listing([]int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 7.5),
		},
	}

	items := newTestCollector(client).Collect(context.Background(), tmdb.TypeMovie, 3, 6.0, true)

	require.Len(t, items, 3)
	assert.Equal(t, 3, client.detailCalls)
	for _, it := range items {
		require.NotNil(t, it.RuntimeMinutes)
		assert.Equal(t, 123, *it.RuntimeMinutes)
	}
}

func TestCollectPageSelectionStableWithinDay(t *testing.T) {
	newClient := func() *mockClient {
		return &mockClient{configured: true, popular: map[int][]tmdb.ListingItem{1: listing([]int64{1}, 7.0)}}
	}

	c1, c2 := newClient(), newClient()
	col1, col2 := newTestCollector(c1), newTestCollector(c2)
	// Different entropy must not affect which pages are fetched.
	col2.entropy = func() int64 { return 7777 }

	col1.Collect(context.Background(), tmdb.TypeMovie, 5, 6.0, false)
	col2.Collect(context.Background(), tmdb.TypeMovie, 5, 6.0, false)

	assert.Equal(t, c1.popularPages, c2.popularPages)
}

func TestCollectPageSelectionRotatesAcrossDays(t *testing.T) {
	pagesFor := func(day time.Time) []int {
		client := &mockClient{configured: true, popular: map[int][]tmdb.ListingItem{1: listing([]int64{1}, 7.0)}}
		col := newTestCollector(client)
		col.now = func() time.Time { return day }
		col.Collect(context.Background(), tmdb.TypeMovie, 5, 6.0, false)
		return client.popularPages
	}

	// With 9 candidate secondary pages, at least one of a handful of days
	// must select differently from day one.
	base := pagesFor(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	rotated := false
	for d := 2; d <= 8; d++ {
		if !assert.ObjectsAreEqual(base, pagesFor(time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC))) {
			rotated = true
			break
		}
	}
	assert.True(t, rotated, "page selection should vary day to day")
}

func TestAnalyzeWithoutKeyDegrades(t *testing.T) {
	client := &mockClient{configured: false}
	doc := newTestCollector(client).Analyze(context.Background(), 5, 6.0, false)

	assert.NotEmpty(t, doc.Error)
	assert.Empty(t, doc.Movies)
	assert.Empty(t, doc.TVShows)
}

func TestCollectGenreFallbackNeverErrors(t *testing.T) {
	client := &mockClient{
		configured: true,
		popular:    map[int][]tmdb.ListingItem{1: listing([]int64{1}, 7.0)},
		genreErr:   faults.New(faults.UpstreamUnavailable, "genre list down"),
	}

	items := newTestCollector(client).Collect(context.Background(), tmdb.TypeMovie, 5, 6.0, false)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"Drama"}, items[0].Genres, "built-in table resolves id 18")
}
