package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is the signed-in user's basic identity.
type Profile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// FetchProfile reads the userinfo endpoint with an authenticated client.
// endpoint overrides the API base URL; leave empty in production.
func FetchProfile(ctx context.Context, client *http.Client, endpoint string) (*Profile, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	return &Profile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// ProfileFromIDToken decodes the claims of a Google ID token, as posted by the
// browser's one-tap sign-in. The signature is not verified here; the token is
// only used to label the session, never to authorize calendar access.
func ProfileFromIDToken(idToken string) (*Profile, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to decode ID token: %w", err)
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return nil, errors.New("ID token has no email claim")
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return &Profile{Email: email, Name: name, Picture: picture}, nil
}
