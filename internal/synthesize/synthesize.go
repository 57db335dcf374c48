// Package synthesize combines the analyzer documents into a ranked pick
// list matched to the day's free windows.
package synthesize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/calendar"
	"github.com/couchpilot/couchpilot/internal/catalog"
	"github.com/couchpilot/couchpilot/internal/feedback"
	"github.com/couchpilot/couchpilot/internal/history"
	"github.com/couchpilot/couchpilot/internal/llm"
	"github.com/couchpilot/couchpilot/internal/podcast"
)

// Content types carried on picks.
const (
	ContentMovie   = "movie"
	ContentTV      = "tv"
	ContentPodcast = "podcast"
)

// Selection methods recorded on the document.
const (
	MethodLLM           = "llm"
	MethodDeterministic = "deterministic"
)

// Fallback durations when a candidate carries none.
const (
	defaultMovieMinutes   = 120
	defaultEpisodeMinutes = 45
	defaultPodcastMinutes = 40
)

// Podcasts carry no vote average; this stands in for the rating term so
// they compete with rated content on genre fit.
const podcastRatingTerm = 0.6

// Candidates offered to the LLM are capped to keep prompts bounded.
const maxPromptCandidates = 40

const selectionPrompt = `You are picking tonight's watch/listen recommendations for one user.

User movie genre weights: %s
User TV genre weights: %s
User podcast genre weights: %s
Recent feedback: satisfaction=%s engagement=%s

Free windows today:
%s

Candidates (pick by index):
%s

Pick the %d best candidates for this user and these windows. Respond with ONLY this JSON:
{
    "picks": [
        {"index": 0, "reason": "One short sentence why this fits"}
    ]
}`

// FreeWindow is a gap between busy periods inside the planning day.
type FreeWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
}

// Pick is one selected recommendation, optionally matched to a window.
type Pick struct {
	Title           string      `json:"title"`
	ContentType     string      `json:"content_type"`
	URL             string      `json:"url"`
	DurationMinutes int         `json:"duration_minutes"`
	Genres          []string    `json:"genres,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Slot            *FreeWindow `json:"slot,omitempty"`
}

// Document is the synthesis output.
type Document struct {
	Date        string       `json:"date"`
	FreeWindows []FreeWindow `json:"free_windows"`
	Picks       []Pick       `json:"picks"`
	Method      string       `json:"method"`
	Error       string       `json:"error,omitempty"`
}

// Inputs bundles the analyzer documents feeding synthesis.
type Inputs struct {
	Busy     *calendar.Document
	Catalog  *catalog.Document
	History  *history.Document
	Podcasts *podcast.Document
	Feedback *feedback.Document
}

// Options controls window derivation and pick count.
type Options struct {
	TopRecommendations int
	MinFreeTimeMinutes int
	DayStartHour       int
	DayEndHour         int
	// MaxTokens bounds LLM responses; 0 means 1024.
	MaxTokens int
}

// Synthesizer builds the pick list. A nil provider always uses the
// deterministic scorer.
type Synthesizer struct {
	provider llm.Provider
	opts     Options
	log      *zap.Logger
	now      func() time.Time
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(provider llm.Provider, opts Options, log *zap.Logger) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Synthesize derives free windows from busy periods and selects picks from
// the candidate pools. It never fails: an empty candidate pool yields an
// empty pick list with an error note.
func (s *Synthesizer) Synthesize(ctx context.Context, in Inputs) *Document {
	loc := time.UTC
	if in.Busy != nil && in.Busy.Timezone != "" {
		if parsed, err := time.LoadLocation(in.Busy.Timezone); err == nil {
			loc = parsed
		}
	}
	today := s.now().In(loc)

	doc := &Document{
		Date:        today.Format("2006-01-02"),
		FreeWindows: s.deriveFreeWindows(today, in.Busy),
		Picks:       []Pick{},
	}

	pool := buildCandidates(in)
	if len(pool) == 0 {
		doc.Method = MethodDeterministic
		doc.Error = "no candidates available from any source"
		return doc
	}

	if s.provider != nil {
		if picks, ok := s.selectWithLLM(ctx, in, pool, doc.FreeWindows); ok {
			doc.Method = MethodLLM
			doc.Picks = picks
			return doc
		}
		s.log.Warn("llm selection failed, using deterministic fallback")
	}

	doc.Method = MethodDeterministic
	doc.Picks = s.selectDeterministic(in, pool, doc.FreeWindows)
	return doc
}

// deriveFreeWindows finds gaps of at least MinFreeTimeMinutes between busy
// periods inside [DayStartHour, DayEndHour] of the planning day.
func (s *Synthesizer) deriveFreeWindows(today time.Time, busy *calendar.Document) []FreeWindow {
	y, m, d := today.Date()
	dayStart := time.Date(y, m, d, s.opts.DayStartHour, 0, 0, 0, today.Location())
	dayEnd := time.Date(y, m, d, 0, 0, 0, 0, today.Location()).Add(time.Duration(s.opts.DayEndHour) * time.Hour)

	var periods []calendar.BusyPeriod
	if busy != nil {
		periods = busy.BusyPeriods
	}

	var windows []FreeWindow
	cursor := dayStart
	for _, p := range periods {
		start, end := p.Start, p.End
		if !end.After(dayStart) || !start.Before(dayEnd) {
			continue
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if start.After(cursor) {
			windows = appendWindow(windows, cursor, start, s.opts.MinFreeTimeMinutes)
		}
		if end.After(cursor) {
			cursor = end
		}
	}
	if cursor.Before(dayEnd) {
		windows = appendWindow(windows, cursor, dayEnd, s.opts.MinFreeTimeMinutes)
	}
	return windows
}

func appendWindow(windows []FreeWindow, start, end time.Time, minMinutes int) []FreeWindow {
	minutes := int(end.Sub(start).Minutes())
	if minutes < minMinutes {
		return windows
	}
	return append(windows, FreeWindow{Start: start, End: end, Minutes: minutes})
}

type candidate struct {
	title       string
	contentType string
	url         string
	duration    int
	genres      []string
	rating      float64
}

func buildCandidates(in Inputs) []candidate {
	var pool []candidate
	if in.Catalog != nil {
		for _, item := range in.Catalog.Movies {
			duration := defaultMovieMinutes
			if item.RuntimeMinutes != nil && *item.RuntimeMinutes > 0 {
				duration = *item.RuntimeMinutes
			}
			pool = append(pool, candidate{
				title:       item.Title,
				contentType: ContentMovie,
				url:         item.URL,
				duration:    duration,
				genres:      item.Genres,
				rating:      item.VoteAverage,
			})
		}
		for _, item := range in.Catalog.TVShows {
			duration := defaultEpisodeMinutes
			if item.EpisodeRuntimeMinutes != nil && *item.EpisodeRuntimeMinutes > 0 {
				duration = *item.EpisodeRuntimeMinutes
			}
			pool = append(pool, candidate{
				title:       item.Title,
				contentType: ContentTV,
				url:         item.URL,
				duration:    duration,
				genres:      item.Genres,
				rating:      item.VoteAverage,
			})
		}
	}
	if in.Podcasts != nil {
		for _, ep := range in.Podcasts.EpisodeCandidates {
			duration := ep.DurationMinutes
			if duration <= 0 {
				duration = defaultPodcastMinutes
			}
			title := ep.Title
			if ep.ShowName != "" {
				title = fmt.Sprintf("%s — %s", ep.ShowName, ep.Title)
			}
			pool = append(pool, candidate{
				title:       title,
				contentType: ContentPodcast,
				url:         ep.URL,
				duration:    duration,
				genres:      ep.Genres,
			})
		}
	}
	return pool
}

// score ranks a candidate by profile genre-weight overlap plus a normalized
// rating term.
func score(c candidate, in Inputs) float64 {
	var weights map[string]float64
	switch c.contentType {
	case ContentMovie:
		if in.History != nil && in.History.MoviePreferences != nil {
			weights = in.History.MoviePreferences.FavoriteGenres
		}
	case ContentTV:
		if in.History != nil && in.History.TVPreferences != nil {
			weights = in.History.TVPreferences.FavoriteGenres
		}
	case ContentPodcast:
		if in.Podcasts != nil {
			weights = in.Podcasts.Genres
		}
	}

	genreScore := 0.0
	for _, genre := range c.genres {
		if w, ok := weights[genre]; ok {
			genreScore += w
			continue
		}
		genreScore += weights[strings.ToLower(genre)]
	}

	ratingTerm := c.rating / 10.0
	if c.contentType == ContentPodcast {
		ratingTerm = podcastRatingTerm
	}
	return genreScore + ratingTerm
}

// selectDeterministic takes the highest-scored candidates and fits each to
// the first window long enough for it. With no usable window a pick carries
// no slot.
func (s *Synthesizer) selectDeterministic(in Inputs, pool []candidate, windows []FreeWindow) []Pick {
	ranked := make([]int, len(pool))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return score(pool[ranked[a]], in) > score(pool[ranked[b]], in)
	})

	limit := s.opts.TopRecommendations
	if limit > len(ranked) {
		limit = len(ranked)
	}

	picks := make([]Pick, 0, limit)
	for _, idx := range ranked[:limit] {
		c := pool[idx]
		picks = append(picks, Pick{
			Title:           c.title,
			ContentType:     c.contentType,
			URL:             c.url,
			DurationMinutes: c.duration,
			Genres:          c.genres,
			Slot:            fitWindow(windows, c.duration, len(picks)),
		})
	}
	return picks
}

// fitWindow returns the first window the duration fits into, starting from
// a rotating offset so consecutive picks spread across windows.
func fitWindow(windows []FreeWindow, duration, offset int) *FreeWindow {
	if len(windows) == 0 {
		return nil
	}
	for i := 0; i < len(windows); i++ {
		w := windows[(offset+i)%len(windows)]
		if duration <= w.Minutes {
			return &w
		}
	}
	// Nothing fits; park it in the longest window.
	longest := windows[0]
	for _, w := range windows[1:] {
		if w.Minutes > longest.Minutes {
			longest = w
		}
	}
	return &longest
}

func (s *Synthesizer) selectWithLLM(ctx context.Context, in Inputs, pool []candidate, windows []FreeWindow) ([]Pick, bool) {
	prompt := s.buildPrompt(in, pool, windows)

	maxTokens := s.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	response, err := s.provider.Generate(ctx, prompt, maxTokens)
	if err != nil {
		s.log.Warn("llm generation failed", zap.Error(err))
		return nil, false
	}

	parsed := llm.ParseJSONResponse(response)
	if parsed == nil {
		return nil, false
	}
	rawPicks, ok := parsed["picks"].([]any)
	if !ok || len(rawPicks) == 0 {
		return nil, false
	}

	limit := s.opts.TopRecommendations
	var picks []Pick
	seen := map[int]struct{}{}
	for _, raw := range rawPicks {
		if len(picks) >= limit {
			break
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		idxFloat, ok := obj["index"].(float64)
		if !ok {
			continue
		}
		idx := int(idxFloat)
		if idx < 0 || idx >= len(pool) || idx >= maxPromptCandidates {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}

		c := pool[idx]
		reason, _ := obj["reason"].(string)
		picks = append(picks, Pick{
			Title:           c.title,
			ContentType:     c.contentType,
			URL:             c.url,
			DurationMinutes: c.duration,
			Genres:          c.genres,
			Reason:          reason,
			Slot:            fitWindow(windows, c.duration, len(picks)),
		})
	}

	if len(picks) == 0 {
		return nil, false
	}
	return picks, true
}

func (s *Synthesizer) buildPrompt(in Inputs, pool []candidate, windows []FreeWindow) string {
	var windowLines []string
	for _, w := range windows {
		windowLines = append(windowLines, fmt.Sprintf("- %s to %s (%d min)",
			w.Start.Format("15:04"), w.End.Format("15:04"), w.Minutes))
	}
	if len(windowLines) == 0 {
		windowLines = append(windowLines, "- none known, assume a free evening")
	}

	limit := len(pool)
	if limit > maxPromptCandidates {
		limit = maxPromptCandidates
	}
	var candidateLines []string
	for i, c := range pool[:limit] {
		candidateLines = append(candidateLines, fmt.Sprintf("[%d] %s (%s, %d min, genres: %s)",
			i, c.title, c.contentType, c.duration, strings.Join(c.genres, "/")))
	}

	movieWeights, tvWeights := "{}", "{}"
	if in.History != nil {
		if in.History.MoviePreferences != nil {
			movieWeights = formatWeights(in.History.MoviePreferences.FavoriteGenres)
		}
		if in.History.TVPreferences != nil {
			tvWeights = formatWeights(in.History.TVPreferences.FavoriteGenres)
		}
	}
	podcastWeights := "{}"
	if in.Podcasts != nil {
		podcastWeights = formatWeights(in.Podcasts.Genres)
	}

	satisfaction, engagement := "unknown", "unknown"
	if in.Feedback != nil {
		satisfaction = in.Feedback.Patterns.OverallSatisfaction
		engagement = in.Feedback.Patterns.EngagementLevel
	}

	return fmt.Sprintf(selectionPrompt,
		movieWeights, tvWeights, podcastWeights,
		satisfaction, engagement,
		strings.Join(windowLines, "\n"),
		strings.Join(candidateLines, "\n"),
		s.opts.TopRecommendations)
}

func formatWeights(weights map[string]float64) string {
	if len(weights) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(weights)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
