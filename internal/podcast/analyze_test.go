package podcast

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

type stubSpotify struct {
	configured bool
	shows      []Show
	showsErr   error
	episodes   map[string][]EpisodeCandidate
}

func (s *stubSpotify) IsConfigured() bool { return s.configured }

func (s *stubSpotify) SavedShows(_ context.Context) ([]Show, error) {
	return s.shows, s.showsErr
}

func (s *stubSpotify) ShowEpisodes(_ context.Context, showID string, limit int) ([]EpisodeCandidate, error) {
	eps := s.episodes[showID]
	if len(eps) > limit {
		eps = eps[:limit]
	}
	return eps, nil
}

func episodes(showID string, n, durationMinutes int) []EpisodeCandidate {
	eps := make([]EpisodeCandidate, 0, n)
	for i := 0; i < n; i++ {
		eps = append(eps, EpisodeCandidate{
			ID:              fmt.Sprintf("%s-ep%d", showID, i),
			Title:           fmt.Sprintf("Episode %d", i),
			DurationMinutes: durationMinutes,
			ReleaseDate:     "2024-05-01",
			URL:             "https://open.spotify.com/episode/" + showID,
			ShowID:          showID,
		})
	}
	return eps
}

func newTestPodcastAnalyzer(client *stubSpotify) *Analyzer {
	a := NewAnalyzer(client, nil, zap.NewNop())
	a.entropy = func() int64 { return 1 }
	return a
}

func TestAnalyzeEmptyLibrary(t *testing.T) {
	doc := newTestPodcastAnalyzer(&stubSpotify{configured: true}).
		Analyze(context.Background(), "detailed", 30, 30)

	assert.Empty(t, doc.Error)
	assert.Equal(t, 0, doc.TotalShows)
	assert.Equal(t, 0.0, doc.ConfidenceScore)
	assert.Equal(t, "none", doc.ListeningFrequency)
	assert.Equal(t, "unknown", doc.PrimaryGenre)
	assert.Empty(t, doc.EpisodeCandidates)
}

func TestAnalyzeWithoutCredentialsDegrades(t *testing.T) {
	doc := newTestPodcastAnalyzer(&stubSpotify{configured: false}).
		Analyze(context.Background(), "detailed", 30, 30)

	assert.NotEmpty(t, doc.Error)
	assert.Equal(t, 0.0, doc.ConfidenceScore)
}

func TestAnalyzeSavedShowsFetchFailureDegrades(t *testing.T) {
	client := &stubSpotify{
		configured: true,
		showsErr:   faults.New(faults.UpstreamUnavailable, "library down"),
	}
	doc := newTestPodcastAnalyzer(client).Analyze(context.Background(), "detailed", 30, 30)

	assert.NotEmpty(t, doc.Error)
	assert.Empty(t, doc.SavedShows)
}

func TestAnalyzeGenreWeightsAndPrimary(t *testing.T) {
	client := &stubSpotify{
		configured: true,
		shows: []Show{
			{ID: "s1", Name: "True Crime Weekly", Description: "crime investigation stories", Publisher: "Acme"},
			{ID: "s2", Name: "Tech Talk", Description: "technology and science news", Publisher: "Beta"},
			{ID: "s3", Name: "Crime Scenes", Description: "a true crime show", Publisher: "Acme"},
			{ID: "s4", Name: "Morning Run", Description: "", Publisher: "Gamma"},
		},
		episodes: map[string][]EpisodeCandidate{
			"s1": episodes("s1", 3, 40),
			"s2": episodes("s2", 2, 60),
		},
	}

	doc := newTestPodcastAnalyzer(client).Analyze(context.Background(), "detailed", 30, 30)

	assert.InDelta(t, 0.5, doc.Genres["true_crime"], 0.001)
	assert.Equal(t, "true_crime", doc.PrimaryGenre)
	for genre, weight := range doc.Genres {
		assert.GreaterOrEqual(t, weight, 0.0, genre)
		assert.LessOrEqual(t, weight, 1.0, genre)
	}

	assert.Equal(t, 4, doc.TotalShows)
	assert.Equal(t, "casual_listener", doc.ListeningFrequency)
	assert.Equal(t, map[string]int{"Acme": 2, "Beta": 1, "Gamma": 1}, doc.Publishers)
	// Languages default to en when the show carries none.
	assert.Equal(t, map[string]int{"en": 4}, doc.Languages)
	assert.Greater(t, doc.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, doc.ConfidenceScore, 1.0)
}

func TestAnalyzeSamplesDownToCap(t *testing.T) {
	client := &stubSpotify{
		configured: true,
		shows:      []Show{{ID: "s1", Name: "Big Feed", Description: "daily news"}},
		episodes:   map[string][]EpisodeCandidate{"s1": episodes("s1", 50, 30)},
	}

	doc := newTestPodcastAnalyzer(client).Analyze(context.Background(), "detailed", 50, 10)

	require.Len(t, doc.EpisodeCandidates, 10)
	assert.Equal(t, 10, doc.TotalCandidates)
	seen := map[string]bool{}
	for _, c := range doc.EpisodeCandidates {
		assert.False(t, seen[c.ID], "duplicate candidate %s", c.ID)
		seen[c.ID] = true
		assert.Equal(t, "Big Feed", c.ShowName)
	}
}

func TestAnalyzeKeepsAllWhenUnderCap(t *testing.T) {
	client := &stubSpotify{
		configured: true,
		shows:      []Show{{ID: "s1", Name: "Small Feed"}},
		episodes:   map[string][]EpisodeCandidate{"s1": episodes("s1", 4, 25)},
	}

	doc := newTestPodcastAnalyzer(client).Analyze(context.Background(), "detailed", 30, 30)
	assert.Len(t, doc.EpisodeCandidates, 4)
}

func TestAnalyzeDurationStatsFromSampledEpisodes(t *testing.T) {
	client := &stubSpotify{
		configured: true,
		shows:      []Show{{ID: "s1", Name: "Hour Show", Description: "long form interview"}},
		episodes:   map[string][]EpisodeCandidate{"s1": episodes("s1", 5, 60)},
	}

	doc := newTestPodcastAnalyzer(client).Analyze(context.Background(), "detailed", 30, 30)

	assert.Equal(t, 60, doc.PreferredDurationMinutes)
	require.NotNil(t, doc.EpisodeDurationRange)
	assert.Equal(t, 60, doc.EpisodeDurationRange.Min)
	assert.Equal(t, 60, doc.EpisodeDurationRange.Max)
	assert.Equal(t, 5, doc.EpisodeDurationRange.SampleCount)
}

func TestSampleEpisodesExactCapWithoutReplacement(t *testing.T) {
	pool := episodes("s", 20, 30)
	rng := rand.New(rand.NewSource(99))

	sample := SampleEpisodes(rng, pool, 7)

	require.Len(t, sample, 7)
	seen := map[string]bool{}
	for _, c := range sample {
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
}

func TestInferGenresOncePerText(t *testing.T) {
	genres := InferGenres("True Crime and more crime: a mystery investigation")
	assert.Equal(t, []string{"true_crime"}, genres)

	assert.Empty(t, InferGenres(""))
	assert.Equal(t, []string{"news", "technology"}, InferGenres("Tech news of the day"))
}

func TestListeningFrequencyBuckets(t *testing.T) {
	assert.Equal(t, "none", listeningFrequency(0))
	assert.Equal(t, "light_listener", listeningFrequency(2))
	assert.Equal(t, "casual_listener", listeningFrequency(3))
	assert.Equal(t, "regular_listener", listeningFrequency(10))
	assert.Equal(t, "heavy_listener", listeningFrequency(20))
}
