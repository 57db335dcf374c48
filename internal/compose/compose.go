// Package compose renders the synthesized pick list as a Discord markdown
// message.
package compose

import (
	"fmt"
	"strings"

	"github.com/couchpilot/couchpilot/internal/discord"
	"github.com/couchpilot/couchpilot/internal/synthesize"
)

const (
	emojiMovie   = "🎬"
	emojiTV      = "📺"
	emojiPodcast = "🎧"

	noLinkMarker = "(no link)"

	footer = "React to tune future picks: 👍 good • 👎 miss • ✅ watched/listened • ❌ not interested • ⭐ perfect • 🕐 bad timing"
)

// Message renders the synthesis document as Discord markdown, capped at the
// Discord content limit.
func Message(doc *synthesize.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Your picks for %s**\n", doc.Date)

	if len(doc.Picks) == 0 {
		b.WriteString("\nNo recommendations today")
		if doc.Error != "" {
			fmt.Fprintf(&b, " — %s", doc.Error)
		}
		b.WriteString(".\n")
		return discord.Truncate(b.String())
	}

	for i, pick := range doc.Picks {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%d. %s **%s** (%d min)\n",
			i+1, contentEmoji(pick.ContentType), pick.Title, pick.DurationMinutes)

		if pick.Slot != nil {
			fmt.Fprintf(&b, "   🕒 %s–%s\n",
				pick.Slot.Start.Format("15:04"), pick.Slot.End.Format("15:04"))
		}
		if pick.Reason != "" {
			fmt.Fprintf(&b, "   _%s_\n", pick.Reason)
		}

		// The URL is carried verbatim; rewriting it would break the link.
		url := pick.URL
		if url == "" {
			url = noLinkMarker
		}
		fmt.Fprintf(&b, "   %s\n", url)
	}

	b.WriteString("\n" + footer)
	return discord.Truncate(b.String())
}

func contentEmoji(contentType string) string {
	switch contentType {
	case synthesize.ContentMovie:
		return emojiMovie
	case synthesize.ContentTV:
		return emojiTV
	case synthesize.ContentPodcast:
		return emojiPodcast
	}
	return emojiMovie
}
