package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/couchpilot/couchpilot/internal/faults"
)

const eventsBaseURL = "https://www.googleapis.com/calendar/v3/calendars"

// EventTime is one boundary of a calendar event. Exactly one of DateTime
// (timed events, RFC3339) or Date (all-day events, YYYY-MM-DD) is set.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Event is a raw calendar event as returned by the provider.
type Event struct {
	Summary string     `json:"summary"`
	Start   *EventTime `json:"start"`
	End     *EventTime `json:"end"`
}

// Client fetches events from the Google Calendar REST API.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient creates a calendar client. An empty apiKey is allowed; Events
// will return a MissingCredential fault.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured returns whether the API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Events lists single events for calendarID between startDate and endDate
// (inclusive, YYYY-MM-DD), ordered by start time.
func (c *Client) Events(ctx context.Context, calendarID, startDate, endDate string) ([]Event, error) {
	if c.apiKey == "" {
		return nil, faults.New(faults.MissingCredential, "calendar API key not set")
	}

	params := url.Values{
		"key":          {c.apiKey},
		"timeMin":      {startDate + "T00:00:00Z"},
		"timeMax":      {endDate + "T23:59:59Z"},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
		"maxResults":   {"2500"},
	}

	endpoint := fmt.Sprintf("%s/%s/events?%s", eventsBaseURL, url.PathEscape(calendarID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.UpstreamUnavailable, err, "calendar events request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.New(faults.UpstreamUnavailable, "calendar API returned %d", resp.StatusCode)
	}

	var result struct {
		Items []Event `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, faults.Wrap(faults.UpstreamUnavailable, err, "decoding calendar events")
	}

	return result.Items, nil
}
