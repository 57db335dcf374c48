package podcast

import (
	"context"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// FeedConfig is one extra podcast RSS feed.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedFetcher turns configured RSS feeds into episode candidates for shows
// that are not in the Spotify library.
type FeedFetcher struct {
	feeds  []FeedConfig
	parser *gofeed.Parser
	log    *zap.Logger
}

// NewFeedFetcher creates a fetcher over the configured extra feeds.
func NewFeedFetcher(feeds []FeedConfig, log *zap.Logger) *FeedFetcher {
	return &FeedFetcher{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		log:    log,
	}
}

// FetchAll parses every configured feed, capping episodes per feed. Feeds
// that fail to parse are skipped.
func (f *FeedFetcher) FetchAll(ctx context.Context, episodesPerFeed int) []EpisodeCandidate {
	var all []EpisodeCandidate
	for _, fc := range f.feeds {
		feed, err := f.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			f.log.Warn("podcast feed parse failed", zap.String("url", fc.URL), zap.Error(err))
			continue
		}

		name := fc.Name
		if name == "" {
			name = feed.Title
		}

		count := 0
		for _, item := range feed.Items {
			if count >= episodesPerFeed {
				break
			}
			candidate := feedItemToCandidate(item, feed, name)
			if candidate == nil {
				continue
			}
			all = append(all, *candidate)
			count++
		}
		f.log.Debug("podcast feed parsed", zap.String("feed", name), zap.Int("episodes", count))
	}
	return all
}

func feedItemToCandidate(item *gofeed.Item, feed *gofeed.Feed, showName string) *EpisodeCandidate {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var releaseDate string
	if item.PublishedParsed != nil {
		releaseDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		releaseDate = item.UpdatedParsed.Format("2006-01-02")
	}

	id := item.GUID
	if id == "" {
		id = item.Link
	}

	publisher := ""
	if feed.ITunesExt != nil {
		publisher = feed.ITunesExt.Author
	}

	return &EpisodeCandidate{
		ID:              id,
		Title:           title,
		Description:     strings.TrimSpace(item.Description),
		DurationMinutes: itunesDurationMinutes(item),
		ReleaseDate:     releaseDate,
		URL:             item.Link,
		ShowID:          "feed:" + showName,
		ShowName:        showName,
		Publisher:       publisher,
		Genres:          InferGenres(title + " " + item.Description),
	}
}

// itunesDurationMinutes parses the itunes:duration tag, which is either a
// bare second count or H:MM:SS / MM:SS.
func itunesDurationMinutes(item *gofeed.Item) int {
	if item.ITunesExt == nil || item.ITunesExt.Duration == "" {
		return 0
	}
	raw := item.ITunesExt.Duration

	if !strings.Contains(raw, ":") {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return 0
		}
		return seconds / 60
	}

	parts := strings.Split(raw, ":")
	seconds := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		seconds = seconds*60 + n
	}
	return seconds / 60
}
