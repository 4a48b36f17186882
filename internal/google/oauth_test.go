package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewOAuthConfig_DefaultScopes(t *testing.T) {
	conf := NewOAuthConfig("id", "secret", "http://localhost:3000/auth/google/callback", nil)

	assert.Equal(t, DefaultOAuthScopes, conf.Scopes)
	assert.Contains(t, conf.Scopes, ScopeCalendarReadonly)
	assert.Equal(t, "http://localhost:3000/auth/google/callback", conf.RedirectURL)
}

func TestAuthURL(t *testing.T) {
	conf := NewOAuthConfig("id", "secret", "http://localhost:3000/auth/google/callback", nil)
	state := NewState()

	u, err := url.Parse(AuthURL(conf, state))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, state, q.Get("state"))
	assert.Contains(t, q.Get("scope"), ScopeCalendarReadonly)
	assert.NotEqual(t, state, NewState())
}

func TestExchange(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name: "complete grant",
			body: `{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":3600}`,
		},
		{
			name:    "missing refresh token",
			body:    `{"access_token":"a","token_type":"Bearer","expires_in":3600}`,
			wantErr: ErrIncompleteGrant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conf := &oauth2.Config{
				ClientID: "id", ClientSecret: "secret",
				Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
			}
			tok, err := Exchange(context.Background(), conf, "code")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "a", tok.AccessToken)
			assert.Equal(t, "r", tok.RefreshToken)
		})
	}
}

func TestProfileFromIDToken(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":   "jane@example.com",
		"name":    "Jane Doe",
		"picture": "https://example.com/jane.png",
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	profile, err := ProfileFromIDToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", profile.Email)
	assert.Equal(t, "Jane Doe", profile.Name)
	assert.Equal(t, "https://example.com/jane.png", profile.Picture)

	_, err = ProfileFromIDToken("not-a-jwt")
	assert.Error(t, err)

	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ProfileFromIDToken(noEmail)
	assert.Error(t, err)
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth2/v2/userinfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"email": "jane@example.com", "name": "Jane Doe", "picture": "https://example.com/p.png",
		})
	}))
	defer srv.Close()

	profile, err := FetchProfile(context.Background(), srv.Client(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, &Profile{Email: "jane@example.com", Name: "Jane Doe", Picture: "https://example.com/p.png"}, profile)
}

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "bare code", input: "  4/0AbCd  \n", want: "4/0AbCd"},
		{name: "callback URL", input: "http://localhost:3000/auth/google/callback?code=abc&state=xyz", want: "abc"},
		{name: "empty", input: "   ", wantErr: "no authorization code"},
		{name: "wrong state", input: "http://localhost:3000/auth/google/callback?code=abc&state=other", wantErr: "invalid OAuth state"},
		{name: "denied", input: "http://localhost:3000/auth/google/callback?error=access_denied&state=xyz", wantErr: "access_denied"},
		{name: "missing code", input: "http://localhost:3000/auth/google/callback?state=xyz", wantErr: "no code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthCode(tt.input, "xyz")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallbackCode_ErrorBeforeState(t *testing.T) {
	_, err := CallbackCode(url.Values{"error": {"access_denied"}}, "xyz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
