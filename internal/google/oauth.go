package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrIncompleteGrant means Google returned a token without both an access
// and a refresh token, which happens when consent was not forced.
var ErrIncompleteGrant = errors.New("authorization did not return both access and refresh tokens")

// NewOAuthConfig returns the OAuth2 configuration for the web sign-in flow.
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// NewState returns a random OAuth state value.
func NewState() string {
	return uuid.NewString()
}

// AuthURL returns the consent URL. Offline access and forced consent make
// Google return a refresh token on every sign-in.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token. A token missing either
// the access or the refresh token is rejected with ErrIncompleteGrant.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, ErrIncompleteGrant
	}
	return tok, nil
}

// NewHTTPClient returns an HTTP client that authenticates with ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
// seen against some Google endpoints.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = NewBaseTransport()
	}
	return client
}

// NewBaseTransport returns the unauthenticated transport used under every
// Google client.
func NewBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     false,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
	}
}

// ParseAuthCode accepts a bare authorization code or a pasted callback URL.
// A URL must carry the expected state.
func ParseAuthCode(input, state string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no authorization code provided")
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid callback URL: %w", err)
	}
	return CallbackCode(u.Query(), state)
}

// CallbackCode extracts the code from OAuth callback query parameters.
func CallbackCode(q url.Values, state string) (string, error) {
	if oauthErr := q.Get("error"); oauthErr != "" {
		return "", fmt.Errorf("authorization was denied: %s", oauthErr)
	}
	if q.Get("state") != state {
		return "", errors.New("invalid OAuth state")
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("callback has no code")
	}
	return code, nil
}
