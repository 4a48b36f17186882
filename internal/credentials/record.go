package credentials

import (
	"encoding/json"
	"math"
	"time"

	"golang.org/x/oauth2"
)

// Record is the raw decoded token file. The file has been written by several
// tools over time, so its shape is not fixed; see Shape for the variants
// that are understood.
type Record map[string]any

// Shape identifies which token file layout a Record uses.
type Shape string

// Known token file layouts, in extraction priority order.
const (
	ShapeNormal      Shape = "normal"       // {"normal":{"access_token":...}}
	ShapeFlat        Shape = "access_token" // {"access_token":...}
	ShapeCamel       Shape = "accessToken"  // {"accessToken":...}
	ShapeToken       Shape = "token"        // {"token":...}
	ShapeCredentials Shape = "credentials"  // {"credentials":{"access_token":...}}
	ShapeUnknown     Shape = ""
)

// Credential is a Record normalized into a single shape.
type Credential struct {
	Shape        Shape
	AccessToken  string
	RefreshToken string
	Scope        string
	TokenType    string
	// Expiry is zero when the record carries no expiry_date.
	Expiry time.Time
}

// HasRefreshToken reports whether the credential can be refreshed without the user.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Expired reports whether the access token is past its expiry, minus skew.
// A credential without a known expiry is never considered expired.
func (c Credential) Expired(now time.Time, skew time.Duration) bool {
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.Expiry)
}

// OAuth2Token converts the credential into an oauth2.Token.
func (c Credential) OAuth2Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.Expiry,
	}
}

// ExtractAccessToken returns the access token from a Record, trying each
// known shape in priority order. ok is false when no shape yields a non-empty
// string; callers treat that as "re-authentication required".
func ExtractAccessToken(rec Record) (token string, ok bool) {
	c, ok := Normalize(rec)
	if !ok {
		return "", false
	}
	return c.AccessToken, true
}

// Normalize picks the first shape that carries an access token and returns
// the tagged Credential. Refresh token, scope and expiry are only read from
// the normal and flat shapes, the only ones that carry them.
func Normalize(rec Record) (Credential, bool) {
	if rec == nil {
		return Credential{}, false
	}

	if normal, ok := rec["normal"].(map[string]any); ok {
		if tok := stringField(normal, "access_token"); tok != "" {
			return fromFields(ShapeNormal, normal, tok), true
		}
	}
	if tok := stringField(rec, "access_token"); tok != "" {
		return fromFields(ShapeFlat, rec, tok), true
	}
	if tok := stringField(rec, "accessToken"); tok != "" {
		return Credential{Shape: ShapeCamel, AccessToken: tok}, true
	}
	if tok := stringField(rec, "token"); tok != "" {
		return Credential{Shape: ShapeToken, AccessToken: tok}, true
	}
	if creds, ok := rec["credentials"].(map[string]any); ok {
		if tok := stringField(creds, "access_token"); tok != "" {
			return Credential{Shape: ShapeCredentials, AccessToken: tok}, true
		}
	}
	return Credential{}, false
}

// NewRecord builds a Record in the normal shape from an OAuth token.
// expiry_date is written in milliseconds since the Unix epoch.
func NewRecord(tok *oauth2.Token, scope string) Record {
	normal := map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
	}
	if tok.RefreshToken != "" {
		normal["refresh_token"] = tok.RefreshToken
	}
	if scope != "" {
		normal["scope"] = scope
	}
	if !tok.Expiry.IsZero() {
		normal["expiry_date"] = tok.Expiry.UnixMilli()
	}
	return Record{"normal": normal}
}

// ScopeFromToken returns the granted scope string Google returns alongside
// a token exchange, or "" when absent.
func ScopeFromToken(tok *oauth2.Token) string {
	if s, ok := tok.Extra("scope").(string); ok {
		return s
	}
	return ""
}

func fromFields(shape Shape, fields map[string]any, accessToken string) Credential {
	return Credential{
		Shape:        shape,
		AccessToken:  accessToken,
		RefreshToken: stringField(fields, "refresh_token"),
		Scope:        stringField(fields, "scope"),
		TokenType:    stringField(fields, "token_type"),
		Expiry:       expiryField(fields["expiry_date"]),
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// expiryField accepts the millisecond timestamps written by this and other
// tools. JSON numbers decode as float64 or json.Number.
func expiryField(v any) time.Time {
	var ms float64
	switch n := v.(type) {
	case float64:
		ms = n
	case int64:
		ms = float64(n)
	case int:
		ms = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return time.Time{}
		}
		ms = f
	default:
		return time.Time{}
	}
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}
