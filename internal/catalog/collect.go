// Package catalog collects movie and TV candidates from TMDB listings,
// mixing a deterministic-per-day page selection with a fully random
// presentation shuffle.
package catalog

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/tmdb"
)

// Fixed page ranges and vote floors for the listing buckets.
const (
	secondaryPageMin = 2
	secondaryPageMax = 10
	secondaryPages   = 2

	movieDiscoverPageMax = 5
	tvDiscoverPageMax    = 4
	movieVoteFloor       = 2000
	tvVoteFloor          = 200

	defaultEpisodeRuntime = 45
)

// Item is one catalog candidate. Detail fields are populated lazily, only
// for items that survive merge, shuffle, and truncation.
type Item struct {
	TMDBID                int64    `json:"tmdb_id"`
	Title                 string   `json:"title"`
	ContentType           string   `json:"content_type"`
	URL                   string   `json:"url,omitempty"`
	Genres                []string `json:"genres"`
	ReleaseDate           string   `json:"release_date"`
	Overview              string   `json:"overview"`
	VoteAverage           float64  `json:"vote_average"`
	VoteCount             int      `json:"vote_count"`
	RuntimeMinutes        *int     `json:"runtime_minutes,omitempty"`
	Tagline               string   `json:"tagline,omitempty"`
	EpisodeRuntimeMinutes *int     `json:"episode_runtime_minutes,omitempty"`
	NumberOfSeasons       *int     `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes      *int     `json:"number_of_episodes,omitempty"`
	Status                string   `json:"status,omitempty"`
	Networks              []string `json:"networks,omitempty"`
	CreatedBy             []string `json:"created_by,omitempty"`
}

// Document is the catalog analyzer output.
type Document struct {
	Movies       []Item `json:"movies"`
	TVShows      []Item `json:"tv_shows"`
	TotalMovies  int    `json:"total_movies"`
	TotalTVShows int    `json:"total_tv_shows"`
	Error        string `json:"error,omitempty"`
}

// Client is the slice of the TMDB client the collector needs.
type Client interface {
	IsConfigured() bool
	Popular(ctx context.Context, contentType string, page int) ([]tmdb.ListingItem, error)
	Discover(ctx context.Context, contentType string, page, minVotes int) ([]tmdb.ListingItem, error)
	MovieDetails(ctx context.Context, id int64) (*tmdb.MovieDetails, error)
	TVDetails(ctx context.Context, id int64) (*tmdb.TVDetails, error)
}

// Collector collects catalog candidates for one run.
type Collector struct {
	client Client
	genres *tmdb.GenreCache
	log    *zap.Logger

	// now seeds the page-selection generator; entropy seeds the
	// presentation shuffle. Two distinct generators on purpose: page
	// selection must be stable within a calendar day, presentation order
	// must vary run to run. Overridable in tests.
	now     func() time.Time
	entropy func() int64
}

// NewCollector creates a catalog collector.
func NewCollector(client Client, genres *tmdb.GenreCache, log *zap.Logger) *Collector {
	return &Collector{
		client:  client,
		genres:  genres,
		log:     log,
		now:     time.Now,
		entropy: func() int64 { return time.Now().UnixNano() },
	}
}

// Analyze collects movie and TV candidates into one document. A missing API
// key degrades the document instead of failing the run.
func (c *Collector) Analyze(ctx context.Context, maxResults int, minRating float64, fetchDetails bool) *Document {
	doc := &Document{Movies: []Item{}, TVShows: []Item{}}
	if !c.client.IsConfigured() {
		doc.Error = "TMDB API key not set"
		return doc
	}

	doc.Movies = c.Collect(ctx, tmdb.TypeMovie, maxResults, minRating, fetchDetails)
	doc.TVShows = c.Collect(ctx, tmdb.TypeTV, maxResults, minRating, fetchDetails)
	doc.TotalMovies = len(doc.Movies)
	doc.TotalTVShows = len(doc.TVShows)
	return doc
}

// Collect returns at most maxResults deduplicated candidates of one content
// type. Detail lookups are bounded by maxResults regardless of how many
// pages were fetched.
func (c *Collector) Collect(ctx context.Context, contentType string, maxResults int, minRating float64, fetchDetails bool) []Item {
	pageRNG := rand.New(rand.NewSource(dailySeed(c.now())))

	primary := c.fetchPopular(ctx, contentType, 1, minRating)

	var secondary []Item
	for _, page := range samplePages(pageRNG, secondaryPageMin, secondaryPageMax, secondaryPages) {
		secondary = append(secondary, c.fetchPopular(ctx, contentType, page, minRating)...)
	}

	discoverMax, voteFloor := movieDiscoverPageMax, movieVoteFloor
	if contentType == tmdb.TypeTV {
		discoverMax, voteFloor = tvDiscoverPageMax, tvVoteFloor
	}
	discoverPage := secondaryPageMin + pageRNG.Intn(discoverMax-secondaryPageMin+1)
	discovery := c.fetchDiscover(ctx, contentType, discoverPage, voteFloor, minRating)

	// Merge primary -> secondary -> discovery, first occurrence wins.
	seen := make(map[int64]struct{})
	var merged []Item
	for _, bucket := range [][]Item{primary, secondary, discovery} {
		for _, item := range bucket {
			if _, ok := seen[item.TMDBID]; ok {
				continue
			}
			seen[item.TMDBID] = struct{}{}
			merged = append(merged, item)
		}
	}

	shuffleRNG := rand.New(rand.NewSource(c.entropy()))
	shuffleRNG.Shuffle(len(merged), func(i, j int) {
		merged[i], merged[j] = merged[j], merged[i]
	})

	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	if fetchDetails {
		for i := range merged {
			c.backfillDetails(ctx, &merged[i])
		}
	}

	c.log.Info("catalog candidates collected",
		zap.String("content_type", contentType),
		zap.Int("candidates", len(merged)))
	return merged
}

func (c *Collector) fetchPopular(ctx context.Context, contentType string, page int, minRating float64) []Item {
	raw, err := c.client.Popular(ctx, contentType, page)
	if err != nil {
		c.log.Warn("popular listing fetch failed",
			zap.String("content_type", contentType), zap.Int("page", page), zap.Error(err))
		return nil
	}
	return c.convert(ctx, contentType, raw, minRating)
}

func (c *Collector) fetchDiscover(ctx context.Context, contentType string, page, voteFloor int, minRating float64) []Item {
	raw, err := c.client.Discover(ctx, contentType, page, voteFloor)
	if err != nil {
		c.log.Warn("discover listing fetch failed",
			zap.String("content_type", contentType), zap.Int("page", page), zap.Error(err))
		return nil
	}
	return c.convert(ctx, contentType, raw, minRating)
}

func (c *Collector) convert(ctx context.Context, contentType string, raw []tmdb.ListingItem, minRating float64) []Item {
	var items []Item
	for _, r := range raw {
		if r.ID == 0 || r.VoteAverage < minRating {
			continue
		}
		items = append(items, Item{
			TMDBID:      r.ID,
			Title:       r.DisplayTitle(),
			ContentType: contentType,
			URL:         fmt.Sprintf("https://www.themoviedb.org/%s/%d", contentType, r.ID),
			Genres:      c.genres.Names(ctx, contentType, r.GenreIDs),
			ReleaseDate: r.ReleaseOrAirDate(),
			Overview:    r.Overview,
			VoteAverage: r.VoteAverage,
			VoteCount:   r.VoteCount,
		})
	}
	return items
}

func (c *Collector) backfillDetails(ctx context.Context, item *Item) {
	switch item.ContentType {
	case tmdb.TypeMovie:
		d, err := c.client.MovieDetails(ctx, item.TMDBID)
		if err != nil {
			c.log.Debug("movie detail lookup failed", zap.Int64("id", item.TMDBID), zap.Error(err))
			return
		}
		item.RuntimeMinutes = d.Runtime
		item.Tagline = d.Tagline
	case tmdb.TypeTV:
		d, err := c.client.TVDetails(ctx, item.TMDBID)
		if err != nil {
			c.log.Debug("tv detail lookup failed", zap.Int64("id", item.TMDBID), zap.Error(err))
			return
		}
		runtime := averageEpisodeRuntime(d.EpisodeRunTime)
		item.EpisodeRuntimeMinutes = &runtime
		item.NumberOfSeasons = d.NumberOfSeasons
		item.NumberOfEpisodes = d.NumberOfEpisodes
		item.Status = d.Status
		for _, n := range d.Networks {
			item.Networks = append(item.Networks, n.Name)
		}
		for _, cb := range d.CreatedBy {
			item.CreatedBy = append(item.CreatedBy, cb.Name)
		}
	}
}

// dailySeed derives the page-selection seed from the calendar date, so page
// choice is stable across retries within a day but rotates daily.
func dailySeed(now time.Time) int64 {
	seed, _ := strconv.ParseInt(now.Format("20060102"), 10, 64)
	return seed
}

// samplePages draws k distinct pages from [min, max].
func samplePages(rng *rand.Rand, min, max, k int) []int {
	span := max - min + 1
	if k > span {
		k = span
	}
	pages := make([]int, 0, k)
	for _, offset := range rng.Perm(span)[:k] {
		pages = append(pages, min+offset)
	}
	return pages
}

func averageEpisodeRuntime(runtimes []int) int {
	if len(runtimes) == 0 {
		return defaultEpisodeRuntime
	}
	sum := 0
	for _, r := range runtimes {
		sum += r
	}
	return sum / len(runtimes)
}
