package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *fakeRecorder) RecordOAuthTokenRefresh(_ context.Context, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func newTokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

func TestTokenSource_ReturnsValidToken(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	now := time.Now()
	require.NoError(t, store.Write(NewRecord(&oauth2.Token{
		AccessToken: "valid", RefreshToken: "r", TokenType: "Bearer", Expiry: now.Add(time.Hour),
	}, "")))

	// Token endpoint must not be called.
	ts := NewTokenSource(context.Background(), store, testOAuthConfig("http://127.0.0.1:0/never"))
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "valid", tok.AccessToken)
}

func TestTokenSource_RefreshesAndPersists(t *testing.T) {
	srv := newTokenServer(t, http.StatusOK, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"scope":"openid"}`)
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Write(NewRecord(&oauth2.Token{
		AccessToken: "stale", RefreshToken: "keep-me", TokenType: "Bearer", Expiry: time.Now().Add(-time.Hour),
	}, "")))

	recorder := &fakeRecorder{}
	ts := NewTokenSource(context.Background(), store, testOAuthConfig(srv.URL), WithRefreshRecorder(recorder))

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, []string{RefreshSuccess}, recorder.results)

	rec, err := store.Read()
	require.NoError(t, err)
	cred, ok := Normalize(rec)
	require.True(t, ok)
	assert.Equal(t, ShapeNormal, cred.Shape)
	assert.Equal(t, "fresh", cred.AccessToken)
	assert.Equal(t, "keep-me", cred.RefreshToken, "refresh token survives when Google omits it")
	assert.Equal(t, "openid", cred.Scope)
	assert.True(t, cred.Expiry.After(time.Now()))
}

func TestTokenSource_RefreshRejected(t *testing.T) {
	srv := newTokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Write(NewRecord(&oauth2.Token{
		AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Hour),
	}, "")))

	recorder := &fakeRecorder{}
	ts := NewTokenSource(context.Background(), store, testOAuthConfig(srv.URL), WithRefreshRecorder(recorder))

	_, err := ts.Token()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.True(t, NeedsReauth(err))
	assert.Equal(t, []string{RefreshFailure}, recorder.results)
}

func TestTokenSource_LegacyShapeIsNotRefreshed(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, store.Write(Record{"accessToken": "legacy"}))

	ts := NewTokenSource(context.Background(), store, testOAuthConfig("http://127.0.0.1:0/never"))
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "legacy", tok.AccessToken)
}

func TestTokenSource_Errors(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	ts := NewTokenSource(context.Background(), store, nil)

	_, err := ts.Token()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Write(Record{"unrelated": true}))
	_, err = ts.Token()
	assert.ErrorIs(t, err, ErrNoAccessToken)
}
