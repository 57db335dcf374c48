// Package discord is a minimal Discord REST client for message delivery and
// reaction-based feedback collection.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

const (
	defaultAPIBase = "https://discord.com/api/v10"

	// Discord hard-caps message content; over-long messages are cut here
	// and marked.
	maxMessageLength  = 2000
	truncateAt        = 1950
	truncationMarker  = "\n...[truncated]"
	messageFetchLimit = 100

	// Message flag that suppresses link embeds.
	flagSuppressEmbeds = 4
)

// Author is the message author.
type Author struct {
	ID  string `json:"id"`
	Bot bool   `json:"bot"`
}

// Reaction is one emoji's aggregate on a message. Me reports whether the
// authenticated bot itself reacted.
type Reaction struct {
	Emoji struct {
		Name string `json:"name"`
	} `json:"emoji"`
	Count int  `json:"count"`
	Me    bool `json:"me"`
}

// Message is a channel message with its reactions.
type Message struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Author    Author     `json:"author"`
	Reactions []Reaction `json:"reactions"`
}

// Client talks to the Discord REST API with a bot token, scoped to one
// channel.
type Client struct {
	token     string
	channelID string
	http      *http.Client
	log       *zap.Logger
	baseURL   string
}

// NewClient creates a Discord client for the given channel.
func NewClient(token, channelID string, log *zap.Logger) *Client {
	return &Client{
		token:     token,
		channelID: channelID,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log,
		baseURL:   defaultAPIBase,
	}
}

// IsConfigured reports whether both the bot token and channel id are set.
func (c *Client) IsConfigured() bool { return c.token != "" && c.channelID != "" }

// BotUser returns the authenticated bot's user id.
func (c *Client) BotUser(ctx context.Context) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", faults.New(faults.MalformedRecord, "bot user response missing id")
	}
	return user.ID, nil
}

// Messages fetches the most recent channel messages, newest first. Discord
// caps a single page at 100.
func (c *Client) Messages(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 || limit > messageFetchLimit {
		limit = messageFetchLimit
	}
	var messages []Message
	endpoint := fmt.Sprintf("/channels/%s/messages?limit=%s", c.channelID, strconv.Itoa(limit))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts content to the channel with embeds suppressed and
// returns the new message id. Over-long content is truncated with a marker.
func (c *Client) SendMessage(ctx context.Context, content string) (string, error) {
	content = Truncate(content)

	payload := map[string]any{
		"content": content,
		"flags":   flagSuppressEmbeds,
	}
	var message struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/channels/%s/messages", c.channelID)
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &message); err != nil {
		return "", err
	}
	return message.ID, nil
}

// AddReaction adds the bot's own reaction to a message.
func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) error {
	endpoint := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		c.channelID, messageID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodPut, endpoint, nil, nil)
}

// SeedReactions adds the feedback emojis to a message best-effort. A failed
// reaction never fails delivery; it is logged and skipped.
func (c *Client) SeedReactions(ctx context.Context, messageID string, emojis []string) {
	for _, emoji := range emojis {
		if err := c.AddReaction(ctx, messageID, emoji); err != nil {
			c.log.Warn("reaction seed failed",
				zap.String("message_id", messageID), zap.String("emoji", emoji), zap.Error(err))
		}
	}
}

// Truncate enforces the Discord content limit, cutting on a rune boundary
// and appending a marker.
func Truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxMessageLength {
		return content
	}
	return string(runes[:truncateAt]) + truncationMarker
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	if !c.IsConfigured() {
		return faults.New(faults.MissingCredential, "discord bot token or channel id not set")
	}

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return faults.Wrap(faults.MalformedRecord, err, "encode discord payload")
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "build discord request")
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Wrap(faults.UpstreamUnavailable, err, "discord %s %s", method, endpoint)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return faults.New(faults.UpstreamUnavailable, "permission denied: bot lacks access to this channel")
	case resp.StatusCode == http.StatusNotFound:
		return faults.New(faults.UpstreamUnavailable, "channel or message not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return faults.New(faults.UpstreamUnavailable, "discord %s returned %d", endpoint, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Wrap(faults.MalformedRecord, err, "decode discord response from %s", endpoint)
	}
	return nil
}
