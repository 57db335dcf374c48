package podcast

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/couchpilot/couchpilot/internal/faults"
)

func newTestTokenSource(t *testing.T, handler http.HandlerFunc) (*TokenSource, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ts := NewTokenSource("client-id", "client-secret", "refresh-token", zap.NewNop())
	ts.tokenURL = server.URL
	return ts, server
}

func TestTokenRefreshSendsBasicAuthAndGrant(t *testing.T) {
	var gotAuth, gotGrant, gotRefresh string
	ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotAuth = r.Header.Get("Authorization")
		gotGrant = r.PostForm.Get("grant_type")
		gotRefresh = r.PostForm.Get("refresh_token")
		fmt.Fprint(w, `{"access_token": "tok-1", "expires_in": 3600}`)
	})

	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("client-id:client-secret"))
	assert.Equal(t, wantAuth, gotAuth)
	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "refresh-token", gotRefresh)
}

func TestTokenCachedUntilNearExpiry(t *testing.T) {
	calls := 0
	ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprintf(w, `{"access_token": "tok-%d", "expires_in": 3600}`, calls)
	})

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ts.now = func() time.Time { return now }

	first, err := ts.Token(context.Background())
	require.NoError(t, err)

	// Well inside the expiry window: cached token is reused.
	now = base.Add(30 * time.Minute)
	again, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, calls)

	// Within the 5-minute buffer of expiry: refreshed.
	now = base.Add(56 * time.Minute)
	refreshed, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, refreshed)
	assert.Equal(t, 2, calls)
}

func TestTokenMissingCredentials(t *testing.T) {
	ts := NewTokenSource("", "secret", "refresh", zap.NewNop())

	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.MissingCredential))
	assert.False(t, ts.IsConfigured())
}

func TestTokenUpstreamFailure(t *testing.T) {
	ts, _ := newTestTokenSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.UpstreamUnavailable))
}
