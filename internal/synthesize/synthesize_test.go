package synthesize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/calendar"
	"github.com/couchpilot/couchpilot/internal/catalog"
	"github.com/couchpilot/couchpilot/internal/history"
	"github.com/couchpilot/couchpilot/internal/podcast"
)

type mockProvider struct {
	response string
	err      error
	prompt   string
}

func (m *mockProvider) Generate(_ context.Context, prompt string, _ int) (string, error) {
	m.prompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

var testDay = time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC)

func newTestSynthesizer(provider *mockProvider) *Synthesizer {
	opts := Options{
		TopRecommendations: 3,
		MinFreeTimeMinutes: 10,
		DayStartHour:       8,
		DayEndHour:         24,
	}
	var s *Synthesizer
	if provider == nil {
		s = NewSynthesizer(nil, opts, zap.NewNop())
	} else {
		s = NewSynthesizer(provider, opts, zap.NewNop())
	}
	s.now = func() time.Time { return testDay }
	return s
}

func busyDoc(periods ...calendar.BusyPeriod) *calendar.Document {
	return &calendar.Document{Timezone: "UTC", BusyPeriods: periods}
}

func busy(startHr, startMin, endHr, endMin int) calendar.BusyPeriod {
	return calendar.BusyPeriod{
		Start: time.Date(2024, 6, 10, startHr, startMin, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 10, endHr, endMin, 0, 0, time.UTC),
		Type:  calendar.PeriodTimed,
	}
}

func minutes(n int) *int { return &n }

func catalogDoc() *catalog.Document {
	return &catalog.Document{
		Movies: []catalog.Item{
			{Title: "Drama Movie", ContentType: "movie", URL: "https://example.org/m1",
				Genres: []string{"Drama"}, VoteAverage: 8.0, RuntimeMinutes: minutes(110)},
			{Title: "Comedy Movie", ContentType: "movie", URL: "https://example.org/m2",
				Genres: []string{"Comedy"}, VoteAverage: 6.5, RuntimeMinutes: minutes(95)},
		},
		TVShows: []catalog.Item{
			{Title: "Drama Show", ContentType: "tv", URL: "https://example.org/t1",
				Genres: []string{"Drama"}, VoteAverage: 7.5, EpisodeRuntimeMinutes: minutes(50)},
		},
	}
}

func historyDoc() *history.Document {
	return &history.Document{
		MoviePreferences: &history.ContentProfile{FavoriteGenres: map[string]float64{"Drama": 0.8, "Comedy": 0.1}},
		TVPreferences:    &history.ContentProfile{FavoriteGenres: map[string]float64{"Drama": 0.5}},
	}
}

func TestDeriveFreeWindows(t *testing.T) {
	s := newTestSynthesizer(nil)
	doc := s.Synthesize(context.Background(), Inputs{
		Busy:    busyDoc(busy(9, 0, 10, 30), busy(14, 0, 15, 0)),
		Catalog: catalogDoc(),
	})

	require.Len(t, doc.FreeWindows, 3)
	assert.Equal(t, "08:00", doc.FreeWindows[0].Start.Format("15:04"))
	assert.Equal(t, "09:00", doc.FreeWindows[0].End.Format("15:04"))
	assert.Equal(t, 60, doc.FreeWindows[0].Minutes)
	assert.Equal(t, "10:30", doc.FreeWindows[1].Start.Format("15:04"))
	assert.Equal(t, "14:00", doc.FreeWindows[1].End.Format("15:04"))
	assert.Equal(t, "15:00", doc.FreeWindows[2].Start.Format("15:04"))
	assert.Equal(t, 540, doc.FreeWindows[2].Minutes)
}

func TestDeriveFreeWindowsDropsShortGaps(t *testing.T) {
	s := newTestSynthesizer(nil)
	// 5-minute gap between meetings is below the 10-minute floor.
	doc := s.Synthesize(context.Background(), Inputs{
		Busy:    busyDoc(busy(8, 0, 12, 0), busy(12, 5, 23, 55)),
		Catalog: catalogDoc(),
	})

	require.Len(t, doc.FreeWindows, 0)
}

func TestDeriveFreeWindowsFullDayWhenNoBusy(t *testing.T) {
	s := newTestSynthesizer(nil)
	doc := s.Synthesize(context.Background(), Inputs{Busy: busyDoc(), Catalog: catalogDoc()})

	require.Len(t, doc.FreeWindows, 1)
	assert.Equal(t, 16*60, doc.FreeWindows[0].Minutes)
}

func TestDeterministicSelectionRanksByGenreAndRating(t *testing.T) {
	s := newTestSynthesizer(nil)
	doc := s.Synthesize(context.Background(), Inputs{
		Busy:    busyDoc(),
		Catalog: catalogDoc(),
		History: historyDoc(),
	})

	assert.Equal(t, MethodDeterministic, doc.Method)
	require.Len(t, doc.Picks, 3)
	// Drama Movie: 0.8 + 0.80 = 1.6 beats Drama Show (0.5 + 0.75) and
	// Comedy Movie (0.1 + 0.65).
	assert.Equal(t, "Drama Movie", doc.Picks[0].Title)
	assert.Equal(t, "Drama Show", doc.Picks[1].Title)
	assert.Equal(t, "Comedy Movie", doc.Picks[2].Title)

	for _, p := range doc.Picks {
		require.NotNil(t, p.Slot, p.Title)
		assert.GreaterOrEqual(t, p.Slot.Minutes, p.DurationMinutes)
	}
}

func TestDeterministicSelectionIncludesPodcasts(t *testing.T) {
	s := newTestSynthesizer(nil)
	doc := s.Synthesize(context.Background(), Inputs{
		Busy: busyDoc(),
		Podcasts: &podcast.Document{
			Genres: map[string]float64{"true_crime": 0.7},
			EpisodeCandidates: []podcast.EpisodeCandidate{
				{Title: "Cold Case", ShowName: "Crime Hour", DurationMinutes: 45,
					URL: "https://open.spotify.com/episode/x", Genres: []string{"true_crime"}},
			},
		},
	})

	require.Len(t, doc.Picks, 1)
	assert.Equal(t, ContentPodcast, doc.Picks[0].ContentType)
	assert.Equal(t, "Crime Hour — Cold Case", doc.Picks[0].Title)
}

func TestSynthesizeEmptyPool(t *testing.T) {
	s := newTestSynthesizer(nil)
	doc := s.Synthesize(context.Background(), Inputs{Busy: busyDoc()})

	assert.NotEmpty(t, doc.Error)
	assert.Empty(t, doc.Picks)
}

func TestLLMSelectionUsesReturnedIndices(t *testing.T) {
	provider := &mockProvider{response: `{"picks": [
		{"index": 1, "reason": "light comedy for the evening"},
		{"index": 2, "reason": "one episode fits the gap"}
	]}`}
	s := newTestSynthesizer(provider)

	doc := s.Synthesize(context.Background(), Inputs{
		Busy:    busyDoc(),
		Catalog: catalogDoc(),
		History: historyDoc(),
	})

	assert.Equal(t, MethodLLM, doc.Method)
	require.Len(t, doc.Picks, 2)
	assert.Equal(t, "Comedy Movie", doc.Picks[0].Title)
	assert.Equal(t, "light comedy for the evening", doc.Picks[0].Reason)
	assert.Equal(t, "Drama Show", doc.Picks[1].Title)
	assert.Contains(t, provider.prompt, "[0] Drama Movie")
}

func TestLLMSelectionRejectsBadIndices(t *testing.T) {
	provider := &mockProvider{response: `{"picks": [
		{"index": 99, "reason": "out of range"},
		{"index": -1, "reason": "negative"},
		{"index": 0, "reason": "valid"},
		{"index": 0, "reason": "duplicate"}
	]}`}
	s := newTestSynthesizer(provider)

	doc := s.Synthesize(context.Background(), Inputs{Busy: busyDoc(), Catalog: catalogDoc()})

	assert.Equal(t, MethodLLM, doc.Method)
	require.Len(t, doc.Picks, 1)
	assert.Equal(t, "Drama Movie", doc.Picks[0].Title)
}

func TestLLMParseFailureFallsBack(t *testing.T) {
	provider := &mockProvider{response: "I cannot answer in JSON, sorry."}
	s := newTestSynthesizer(provider)

	doc := s.Synthesize(context.Background(), Inputs{
		Busy:    busyDoc(),
		Catalog: catalogDoc(),
		History: historyDoc(),
	})

	assert.Equal(t, MethodDeterministic, doc.Method)
	require.NotEmpty(t, doc.Picks)
}
