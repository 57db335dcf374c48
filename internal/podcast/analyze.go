package podcast

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Listening frequency buckets by saved-show count.
const (
	frequencyNone    = "none"
	frequencyLight   = "light_listener"
	frequencyCasual  = "casual_listener"
	frequencyRegular = "regular_listener"
	frequencyHeavy   = "heavy_listener"
)

// Fallback episode fetch size for duration stats when a show contributed no
// sampled candidates.
const durationSampleLimit = 10

// DurationRange summarizes observed episode durations in minutes.
type DurationRange struct {
	Min         int `json:"min"`
	Max         int `json:"max"`
	Preferred   int `json:"preferred"`
	SampleCount int `json:"sample_count"`
}

// Document is the podcast preference analyzer output.
type Document struct {
	Platform        string  `json:"platform"`
	AnalysisDepth   string  `json:"analysis_depth"`
	ConfidenceScore float64 `json:"confidence_score"`

	Genres                   map[string]float64 `json:"genres"`
	PreferredDurationMinutes int                `json:"preferred_duration_minutes"`
	Publishers               map[string]int     `json:"publishers"`
	Languages                map[string]int     `json:"languages"`
	ExplicitTolerance        float64            `json:"explicit_tolerance"`
	EpisodeDurationRange     *DurationRange     `json:"episode_duration_range,omitempty"`

	PrimaryGenre       string `json:"primary_genre"`
	ListeningFrequency string `json:"listening_frequency"`
	TotalShows         int    `json:"total_shows"`

	SavedShows        []ShowSummary      `json:"saved_shows"`
	EpisodeCandidates []EpisodeCandidate `json:"episode_candidates"`
	TotalCandidates   int                `json:"total_candidates"`

	Error string `json:"error,omitempty"`
}

// SpotifyAPI is the slice of the Spotify client the analyzer needs.
type SpotifyAPI interface {
	IsConfigured() bool
	SavedShows(ctx context.Context) ([]Show, error)
	ShowEpisodes(ctx context.Context, showID string, limit int) ([]EpisodeCandidate, error)
}

// Analyzer builds podcast preference documents from the Spotify library plus
// optional extra RSS feeds.
type Analyzer struct {
	client SpotifyAPI
	feeds  *FeedFetcher
	log    *zap.Logger

	// entropy seeds the episode sampler. Overridable in tests.
	entropy func() int64
}

// NewAnalyzer creates a podcast analyzer. feeds may be nil.
func NewAnalyzer(client SpotifyAPI, feeds *FeedFetcher, log *zap.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		feeds:   feeds,
		log:     log,
		entropy: func() int64 { return time.Now().UnixNano() },
	}
}

// Analyze builds the preference document. Credential and upstream failures
// degrade the document instead of failing the run.
func (a *Analyzer) Analyze(ctx context.Context, depth string, episodesPerShow, maxCandidates int) *Document {
	doc := &Document{
		Platform:           "spotify",
		AnalysisDepth:      depth,
		Genres:             map[string]float64{},
		Publishers:         map[string]int{},
		Languages:          map[string]int{},
		PrimaryGenre:       "unknown",
		ListeningFrequency: "unknown",
		SavedShows:         []ShowSummary{},
		EpisodeCandidates:  []EpisodeCandidate{},
	}

	if !a.client.IsConfigured() {
		doc.Error = "spotify credentials not set"
		return doc
	}

	shows, err := a.client.SavedShows(ctx)
	if err != nil {
		a.log.Warn("saved shows fetch failed", zap.Error(err))
		doc.Error = "failed to retrieve saved shows; check refresh token validity"
		return doc
	}

	candidates := a.discoverCandidates(ctx, shows, episodesPerShow, maxCandidates)

	// Sampled candidates double as the duration sample per show, so the
	// preference pass rarely needs extra episode fetches.
	cache := map[string][]EpisodeCandidate{}
	for _, c := range candidates {
		cache[c.ShowID] = append(cache[c.ShowID], c)
	}

	analysis := a.analyzeShows(ctx, shows, cache)

	doc.Genres = analysis.genres
	doc.PreferredDurationMinutes = analysis.durations.Preferred
	doc.Publishers = topN(analysis.publishers, 5)
	doc.Languages = analysis.languages
	doc.ExplicitTolerance = analysis.explicitTolerance
	doc.EpisodeDurationRange = &analysis.durations
	doc.PrimaryGenre = primaryGenre(analysis.genres)
	doc.ListeningFrequency = listeningFrequency(len(shows))
	doc.TotalShows = len(shows)
	doc.ConfidenceScore = confidence(shows, analysis)
	doc.SavedShows = Summarize(shows)
	doc.EpisodeCandidates = candidates
	doc.TotalCandidates = len(candidates)
	return doc
}

// discoverCandidates flattens episodes across saved shows and extra feeds,
// then samples down to maxCandidates.
func (a *Analyzer) discoverCandidates(ctx context.Context, shows []Show, episodesPerShow, maxCandidates int) []EpisodeCandidate {
	var pool []EpisodeCandidate
	for _, show := range shows {
		if show.ID == "" {
			continue
		}
		episodes, err := a.client.ShowEpisodes(ctx, show.ID, episodesPerShow)
		if err != nil {
			a.log.Warn("episode fetch failed", zap.String("show", show.Name), zap.Error(err))
			continue
		}
		for i := range episodes {
			episodes[i].ShowName = show.Name
			episodes[i].Publisher = show.Publisher
			episodes[i].Genres = InferGenres(episodes[i].Title + " " + episodes[i].Description)
		}
		pool = append(pool, episodes...)
	}

	if a.feeds != nil {
		pool = append(pool, a.feeds.FetchAll(ctx, episodesPerShow)...)
	}

	rng := rand.New(rand.NewSource(a.entropy()))
	sampled := SampleEpisodes(rng, pool, maxCandidates)
	if sampled == nil {
		sampled = []EpisodeCandidate{}
	}
	a.log.Info("episode candidates selected",
		zap.Int("selected", len(sampled)), zap.Int("pool", len(pool)))
	return sampled
}

type showAnalysis struct {
	genres            map[string]float64
	publishers        map[string]int
	languages         map[string]int
	explicitTolerance float64
	durations         DurationRange
	withDescriptions  int
}

func (a *Analyzer) analyzeShows(ctx context.Context, shows []Show, cache map[string][]EpisodeCandidate) showAnalysis {
	analysis := showAnalysis{
		genres:     map[string]float64{},
		publishers: map[string]int{},
		languages:  map[string]int{},
	}
	if len(shows) == 0 {
		return analysis
	}

	genreCounts := map[string]int{}
	explicit := 0
	var durations []int

	for _, show := range shows {
		for _, genre := range InferGenres(show.Name + " " + show.Description) {
			genreCounts[genre]++
		}
		if show.Publisher != "" && show.Publisher != "Unknown" {
			analysis.publishers[show.Publisher]++
		}
		languages := show.Languages
		if len(languages) == 0 {
			languages = []string{"en"}
		}
		for _, lang := range languages {
			analysis.languages[lang]++
		}
		if show.Explicit {
			explicit++
		}
		if show.Description != "" {
			analysis.withDescriptions++
		}
		durations = append(durations, a.showDurations(ctx, show, cache)...)
	}

	total := float64(len(shows))
	for genre, count := range genreCounts {
		analysis.genres[genre] = round2(float64(count) / total)
	}
	analysis.explicitTolerance = round2(float64(explicit) / total)
	analysis.durations = durationRange(durations)
	return analysis
}

func (a *Analyzer) showDurations(ctx context.Context, show Show, cache map[string][]EpisodeCandidate) []int {
	episodes, ok := cache[show.ID]
	if !ok && show.ID != "" {
		fetched, err := a.client.ShowEpisodes(ctx, show.ID, durationSampleLimit)
		if err != nil {
			a.log.Debug("duration sample fetch failed", zap.String("show", show.Name), zap.Error(err))
			return nil
		}
		episodes = fetched
	}

	var durations []int
	for _, e := range episodes {
		if e.DurationMinutes > 0 {
			durations = append(durations, e.DurationMinutes)
		}
	}
	return durations
}

func durationRange(durations []int) DurationRange {
	if len(durations) == 0 {
		return DurationRange{}
	}
	min, max, sum := durations[0], durations[0], 0
	for _, d := range durations {
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return DurationRange{
		Min:         min,
		Max:         max,
		Preferred:   sum / len(durations),
		SampleCount: len(durations),
	}
}

func listeningFrequency(showCount int) string {
	switch {
	case showCount == 0:
		return frequencyNone
	case showCount >= 20:
		return frequencyHeavy
	case showCount >= 10:
		return frequencyRegular
	case showCount >= 3:
		return frequencyCasual
	default:
		return frequencyLight
	}
}

// confidence sums capped per-factor contributions: library size (0-0.3),
// genre diversity (0-0.2), metadata completeness (0-0.2), duration data
// (0-0.15), language diversity (0-0.1), publisher diversity (0-0.05). An
// empty library short-circuits to exactly 0.
func confidence(shows []Show, analysis showAnalysis) float64 {
	showCount := len(shows)
	if showCount == 0 {
		return 0.0
	}

	var score float64
	switch {
	case showCount >= 10:
		score += 0.3
	case showCount >= 5:
		score += 0.2
	default:
		score += 0.1
	}

	switch genreCount := len(analysis.genres); {
	case genreCount >= 5:
		score += 0.2
	case genreCount >= 3:
		score += 0.15
	case genreCount >= 1:
		score += 0.1
	}

	switch described := float64(analysis.withDescriptions); {
	case described >= float64(showCount)*0.8:
		score += 0.2
	case described >= float64(showCount)*0.5:
		score += 0.15
	case described > 0:
		score += 0.1
	default:
		score += 0.05
	}

	if analysis.durations.Preferred > 0 {
		score += 0.15
	} else {
		score += 0.05
	}

	if len(analysis.languages) >= 2 {
		score += 0.1
	} else {
		score += 0.05
	}

	if len(analysis.publishers) >= 5 {
		score += 0.05
	} else {
		score += 0.02
	}

	return round2(math.Min(1.0, score))
}

// primaryGenre returns the heaviest genre, breaking weight ties by name so
// output is stable.
func primaryGenre(genres map[string]float64) string {
	if len(genres) == 0 {
		return "unknown"
	}
	names := make([]string, 0, len(genres))
	for name := range genres {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if genres[name] > genres[best] {
			best = name
		}
	}
	return best
}

// topN keeps the n highest counts, breaking count ties by name.
func topN(counts map[string]int, n int) map[string]int {
	if len(counts) <= n {
		return counts
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	top := make(map[string]int, n)
	for _, name := range names[:n] {
		top[name] = counts[name]
	}
	return top
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
