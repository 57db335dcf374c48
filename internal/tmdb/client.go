// Package tmdb is a minimal client for the TMDB v3 REST API covering the
// listing, detail, genre, and account endpoints couchpilot consumes.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/couchpilot/couchpilot/internal/faults"
)

const baseURL = "https://api.themoviedb.org/3"

// Content types as TMDB names them.
const (
	TypeMovie = "movie"
	TypeTV    = "tv"
)

// ListingItem is one raw result row from a listing or account endpoint.
// Movies carry Title/ReleaseDate, TV shows Name/FirstAirDate; account rated
// lists additionally carry the user's Rating.
type ListingItem struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Name             string   `json:"name"`
	GenreIDs         []int64  `json:"genre_ids"`
	ReleaseDate      string   `json:"release_date"`
	FirstAirDate     string   `json:"first_air_date"`
	Overview         string   `json:"overview"`
	OriginalLanguage string   `json:"original_language"`
	Popularity       float64  `json:"popularity"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Adult            bool     `json:"adult"`
	Rating           *float64 `json:"rating,omitempty"`
}

// DisplayTitle returns the title field appropriate for the content type.
func (i ListingItem) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.Name
}

// ReleaseOrAirDate returns whichever date field is populated.
func (i ListingItem) ReleaseOrAirDate() string {
	if i.ReleaseDate != "" {
		return i.ReleaseDate
	}
	return i.FirstAirDate
}

// MovieDetails is the detail payload for one movie.
type MovieDetails struct {
	Runtime *int   `json:"runtime"`
	Tagline string `json:"tagline"`
}

// TVDetails is the detail payload for one TV show.
type TVDetails struct {
	EpisodeRunTime   []int  `json:"episode_run_time"`
	NumberOfSeasons  *int   `json:"number_of_seasons"`
	NumberOfEpisodes *int   `json:"number_of_episodes"`
	Status           string `json:"status"`
	Networks         []struct {
		Name string `json:"name"`
	} `json:"networks"`
	CreatedBy []struct {
		Name string `json:"name"`
	} `json:"created_by"`
}

// Account is the authenticated account payload.
type Account struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	IncludeAdult bool   `json:"include_adult"`
}

// Client calls the TMDB API with a fixed per-request timeout.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient creates a TMDB client. An empty apiKey is allowed; calls will
// return a MissingCredential fault.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Popular fetches one page of the popular listing for contentType.
func (c *Client) Popular(ctx context.Context, contentType string, page int) ([]ListingItem, error) {
	params := url.Values{
		"include_adult": {"false"},
		"page":          {fmt.Sprint(page)},
	}
	return c.listing(ctx, fmt.Sprintf("/%s/popular", contentType), params)
}

// Discover fetches one page of the discover listing sorted by rating
// descending with a minimum vote-count floor.
func (c *Client) Discover(ctx context.Context, contentType string, page, minVotes int) ([]ListingItem, error) {
	params := url.Values{
		"include_adult":  {"false"},
		"page":           {fmt.Sprint(page)},
		"sort_by":        {"vote_average.desc"},
		"vote_count.gte": {fmt.Sprint(minVotes)},
	}
	return c.listing(ctx, fmt.Sprintf("/discover/%s", contentType), params)
}

func (c *Client) listing(ctx context.Context, endpoint string, params url.Values) ([]ListingItem, error) {
	var result struct {
		Results []ListingItem `json:"results"`
	}
	if err := c.get(ctx, endpoint, params, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// MovieDetails fetches the detail record for one movie.
func (c *Client) MovieDetails(ctx context.Context, id int64) (*MovieDetails, error) {
	var d MovieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// TVDetails fetches the detail record for one TV show.
func (c *Client) TVDetails(ctx context.Context, id int64) (*TVDetails, error) {
	var d TVDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Genres fetches the id-to-name genre table for contentType.
func (c *Client) Genres(ctx context.Context, contentType string) (map[int64]string, error) {
	var result struct {
		Genres []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := c.get(ctx, fmt.Sprintf("/genre/%s/list", contentType), nil, &result); err != nil {
		return nil, err
	}
	table := make(map[int64]string, len(result.Genres))
	for _, g := range result.Genres {
		table[g.ID] = g.Name
	}
	return table, nil
}

// AccountDetails fetches the account for an authenticated session.
func (c *Client) AccountDetails(ctx context.Context, sessionID string) (*Account, error) {
	var a Account
	params := url.Values{"session_id": {sessionID}}
	if err := c.get(ctx, "/account", params, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Account list names.
const (
	ListFavorite  = "favorite"
	ListRated     = "rated"
	ListWatchlist = "watchlist"
)

// AccountList fetches one of the account's content lists (favorite, rated,
// watchlist) for the given content type.
func (c *Client) AccountList(ctx context.Context, accountID int64, list, contentType, sessionID string) ([]ListingItem, error) {
	params := url.Values{"session_id": {sessionID}}
	endpoint := fmt.Sprintf("/account/%d/%s/%s", accountID, list, contentType)
	// TMDB pluralizes tv on account endpoints.
	if contentType == TypeTV {
		endpoint = fmt.Sprintf("/account/%d/%s/tv", accountID, list)
	}
	return c.listing(ctx, endpoint, params)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return faults.New(faults.MissingCredential, "TMDB API key not set")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "TMDB request %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return faults.New(faults.UpstreamUnavailable, "TMDB %s returned %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "decoding TMDB %s", endpoint)
	}
	return nil
}
