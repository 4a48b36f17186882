package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	CookieName = "meetwise_session"
	MaxAge     = 30 * 24 * time.Hour

	AuthMethodOAuth   = "oauth"
	AuthMethodIDToken = "id_token"
)

var (
	ErrNoSession = errors.New("no session")
	ErrCorrupt   = errors.New("session cookie is corrupt")
)

// Record is the signed-in user as kept in the browser.
type Record struct {
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Picture     string `json:"picture,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	AuthMethod  string `json:"authMethod,omitempty"`
}

// Encode serializes r as base64url JSON.
func Encode(r Record) (string, error) {
	if r.Email == "" {
		return "", fmt.Errorf("session record requires an email")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a value produced by Encode.
func Decode(value string) (Record, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if r.Email == "" {
		return Record{}, fmt.Errorf("%w: missing email", ErrCorrupt)
	}
	return r, nil
}

// Load reads the session from the request. A corrupt cookie is reported as
// ErrCorrupt; callers should Clear it.
func Load(r *http.Request) (Record, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Record{}, ErrNoSession
	}
	return Decode(c.Value)
}

// Save writes the session cookie.
func Save(w http.ResponseWriter, rec Record, secure bool) error {
	value, err := Encode(rec)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
