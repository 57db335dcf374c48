// Package podcast analyzes Spotify podcast subscriptions and samples
// episode candidates for recommendations.
package podcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

const (
	defaultAPIBase = "https://api.spotify.com/v1"

	// Spotify caps page size at 50 on the library endpoints.
	pageLimit = 50
)

// Show is a saved podcast show.
type Show struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Publisher   string   `json:"publisher"`
	Description string   `json:"description"`
	URI         string   `json:"uri"`
	Languages   []string `json:"languages"`
	Explicit    bool     `json:"explicit"`
}

// ShowSummary is the compact saved-show record carried in the output
// document.
type ShowSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
	URL       string `json:"url"`
}

// Client talks to the Spotify Web API using a token source.
type Client struct {
	tokens  *TokenSource
	http    *http.Client
	log     *zap.Logger
	baseURL string
}

// NewClient creates a Spotify client.
func NewClient(tokens *TokenSource, log *zap.Logger) *Client {
	return &Client{
		tokens:  tokens,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
		baseURL: defaultAPIBase,
	}
}

// IsConfigured reports whether the underlying token source has credentials.
func (c *Client) IsConfigured() bool { return c.tokens.IsConfigured() }

// SavedShows pages through the user's saved podcast shows.
func (c *Client) SavedShows(ctx context.Context) ([]Show, error) {
	var shows []Show
	offset := 0
	for {
		var page struct {
			Items []struct {
				Show Show `json:"show"`
			} `json:"items"`
		}
		params := url.Values{
			"limit":  {strconv.Itoa(pageLimit)},
			"offset": {strconv.Itoa(offset)},
		}
		if err := c.get(ctx, "/me/shows", params, &page); err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}
		for _, item := range page.Items {
			shows = append(shows, item.Show)
		}
		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}
	return shows, nil
}

// ShowEpisodes fetches up to limit episodes of one show. The returned
// candidates carry only episode-level fields; the caller attaches show
// context and inferred genres.
func (c *Client) ShowEpisodes(ctx context.Context, showID string, limit int) ([]EpisodeCandidate, error) {
	if limit > pageLimit {
		limit = pageLimit
	}
	var page struct {
		Items []struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			Description  string `json:"description"`
			DurationMS   int    `json:"duration_ms"`
			ReleaseDate  string `json:"release_date"`
			Explicit     bool   `json:"explicit"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"items"`
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "/shows/"+showID+"/episodes", params, &page); err != nil {
		return nil, err
	}

	episodes := make([]EpisodeCandidate, 0, len(page.Items))
	for _, item := range page.Items {
		episodes = append(episodes, EpisodeCandidate{
			ID:              item.ID,
			Title:           item.Name,
			Description:     item.Description,
			DurationMinutes: item.DurationMS / 60000,
			ReleaseDate:     item.ReleaseDate,
			URL:             item.ExternalURLs.Spotify,
			Explicit:        item.Explicit,
			ShowID:          showID,
		})
	}
	return episodes, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "build spotify request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "spotify request %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return faults.New(faults.UpstreamUnavailable, "spotify %s returned %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Wrap(faults.MalformedRecord, err, "decode spotify response from %s", endpoint)
	}
	return nil
}

// Summarize converts saved shows to their compact output form, skipping
// records without an id.
func Summarize(shows []Show) []ShowSummary {
	summaries := make([]ShowSummary, 0, len(shows))
	for _, show := range shows {
		if show.ID == "" {
			continue
		}
		summaries = append(summaries, ShowSummary{
			ID:        show.ID,
			Title:     show.Name,
			Publisher: show.Publisher,
			URL:       show.URI,
		})
	}
	return summaries
}
