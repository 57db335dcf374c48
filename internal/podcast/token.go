package podcast

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

const (
	accountsTokenURL = "https://accounts.spotify.com/api/token"

	// Refresh this long before the access token actually expires.
	refreshBuffer = 300 * time.Second
)

// TokenSource exchanges a long-lived refresh token for access tokens and
// caches the result until shortly before expiry. Not safe for concurrent
// use; the pipeline runs analyzers sequentially.
type TokenSource struct {
	clientID     string
	clientSecret string
	refreshToken string

	http     *http.Client
	log      *zap.Logger
	now      func() time.Time
	tokenURL string

	token     string
	expiresAt time.Time
}

// NewTokenSource creates a token source. Any empty credential makes Token
// return a missing-credential fault.
func NewTokenSource(clientID, clientSecret, refreshToken string, log *zap.Logger) *TokenSource {
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 10 * time.Second},
		log:          log,
		now:          time.Now,
		tokenURL:     accountsTokenURL,
	}
}

// IsConfigured reports whether all three credentials are present.
func (t *TokenSource) IsConfigured() bool {
	return t.clientID != "" && t.clientSecret != "" && t.refreshToken != ""
}

// Token returns a valid access token, refreshing when the cached one is
// within the refresh buffer of its absolute expiry.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if !t.IsConfigured() {
		return "", faults.New(faults.MissingCredential, "spotify client credentials or refresh token not set")
	}
	if t.token != "" && t.now().Before(t.expiresAt.Add(-refreshBuffer)) {
		return t.token, nil
	}
	return t.refresh(ctx)
}

func (t *TokenSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "build token request")
	}
	basic := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "spotify token refresh")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", faults.New(faults.UpstreamUnavailable, "spotify token refresh returned %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", faults.Wrap(faults.UpstreamUnavailable, err, "decode token response")
	}
	if payload.AccessToken == "" {
		return "", faults.New(faults.UpstreamUnavailable, "spotify token response missing access_token")
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	t.token = payload.AccessToken
	t.expiresAt = t.now().Add(time.Duration(expiresIn) * time.Second)
	t.log.Debug("spotify access token refreshed", zap.Time("expires_at", t.expiresAt))
	return t.token, nil
}
