package compose

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchpilot/couchpilot/internal/synthesize"
)

func slot(startHr, endHr int) *synthesize.FreeWindow {
	return &synthesize.FreeWindow{
		Start:   time.Date(2024, 6, 10, startHr, 0, 0, 0, time.UTC),
		End:     time.Date(2024, 6, 10, endHr, 0, 0, 0, time.UTC),
		Minutes: (endHr - startHr) * 60,
	}
}

func TestMessageRendersAllContentTypes(t *testing.T) {
	doc := &synthesize.Document{
		Date: "2024-06-10",
		Picks: []synthesize.Pick{
			{Title: "Drama Movie", ContentType: synthesize.ContentMovie, DurationMinutes: 110,
				URL: "https://www.themoviedb.org/movie/1", Slot: slot(20, 23), Reason: "matches your drama habit"},
			{Title: "Drama Show", ContentType: synthesize.ContentTV, DurationMinutes: 50,
				URL: "https://www.themoviedb.org/tv/2"},
			{Title: "Crime Hour — Cold Case", ContentType: synthesize.ContentPodcast, DurationMinutes: 45,
				URL: "https://open.spotify.com/episode/x"},
		},
	}

	msg := Message(doc)

	assert.Contains(t, msg, "**Your picks for 2024-06-10**")
	assert.Contains(t, msg, "1. 🎬 **Drama Movie** (110 min)")
	assert.Contains(t, msg, "2. 📺 **Drama Show** (50 min)")
	assert.Contains(t, msg, "3. 🎧 **Crime Hour — Cold Case** (45 min)")
	assert.Contains(t, msg, "🕒 20:00–23:00")
	assert.Contains(t, msg, "_matches your drama habit_")
}

func TestMessagePreservesURLsVerbatim(t *testing.T) {
	url := "https://www.themoviedb.org/movie/550?language=en-US"
	doc := &synthesize.Document{
		Date:  "2024-06-10",
		Picks: []synthesize.Pick{{Title: "M", ContentType: synthesize.ContentMovie, URL: url}},
	}

	assert.Contains(t, Message(doc), url)
}

func TestMessageMissingURLMarker(t *testing.T) {
	doc := &synthesize.Document{
		Date:  "2024-06-10",
		Picks: []synthesize.Pick{{Title: "M", ContentType: synthesize.ContentMovie}},
	}

	assert.Contains(t, Message(doc), "(no link)")
}

func TestMessageEmptyPicks(t *testing.T) {
	doc := &synthesize.Document{Date: "2024-06-10", Error: "no candidates available from any source"}

	msg := Message(doc)
	assert.Contains(t, msg, "No recommendations today")
	assert.Contains(t, msg, "no candidates available")
}

func TestMessageStaysWithinDiscordLimit(t *testing.T) {
	doc := &synthesize.Document{Date: "2024-06-10"}
	for i := 0; i < 40; i++ {
		doc.Picks = append(doc.Picks, synthesize.Pick{
			Title:           strings.Repeat("Very Long Title ", 5),
			ContentType:     synthesize.ContentMovie,
			DurationMinutes: 120,
			URL:             "https://www.themoviedb.org/movie/12345678",
			Reason:          strings.Repeat("reason ", 10),
		})
	}

	msg := Message(doc)
	require.LessOrEqual(t, len([]rune(msg)), 2000)
	assert.True(t, strings.HasSuffix(msg, "...[truncated]"))
}
