package credentials

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func decode(t *testing.T, raw string) Record {
	t.Helper()
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return rec
}

func TestExtractAccessToken(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantToken string
		wantOK    bool
	}{
		{"normal shape", `{"normal":{"access_token":"n1","refresh_token":"r1"}}`, "n1", true},
		{"flat shape", `{"access_token":"f1"}`, "f1", true},
		{"camel shape", `{"accessToken":"c1"}`, "c1", true},
		{"token shape", `{"token":"t1"}`, "t1", true},
		{"credentials shape", `{"credentials":{"access_token":"k1"}}`, "k1", true},
		{"normal wins over flat", `{"access_token":"f1","normal":{"access_token":"n1"}}`, "n1", true},
		{"flat wins over token", `{"token":"t1","access_token":"f1"}`, "f1", true},
		{"empty normal falls through", `{"normal":{"access_token":""},"token":"t1"}`, "t1", true},
		{"non-string ignored", `{"access_token":42,"accessToken":"c1"}`, "c1", true},
		{"no known field", `{"id_token":"x"}`, "", false},
		{"empty object", `{}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := ExtractAccessToken(decode(t, tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestExtractAccessToken_Nil(t *testing.T) {
	_, ok := ExtractAccessToken(nil)
	assert.False(t, ok)
}

func TestNormalize_NormalShape(t *testing.T) {
	rec := decode(t, `{"normal":{"access_token":"a","refresh_token":"r","scope":"s1 s2","token_type":"Bearer","expiry_date":1735689600000}}`)

	cred, ok := Normalize(rec)
	require.True(t, ok)

	assert.Equal(t, ShapeNormal, cred.Shape)
	assert.Equal(t, "a", cred.AccessToken)
	assert.Equal(t, "r", cred.RefreshToken)
	assert.Equal(t, "s1 s2", cred.Scope)
	assert.True(t, cred.HasRefreshToken())
	assert.Equal(t, time.UnixMilli(1735689600000), cred.Expiry)
}

func TestCredential_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Credential{}.Expired(now, time.Minute), "unknown expiry never expires")
	assert.True(t, Credential{Expiry: now.Add(-time.Second)}.Expired(now, 0))
	assert.True(t, Credential{Expiry: now.Add(30 * time.Second)}.Expired(now, time.Minute))
	assert.False(t, Credential{Expiry: now.Add(time.Hour)}.Expired(now, time.Minute))
}

func TestNewRecord_RoundTripsThroughNormalize(t *testing.T) {
	expiry := time.UnixMilli(1735689600123)
	tok := &oauth2.Token{AccessToken: "acc", RefreshToken: "ref", TokenType: "Bearer", Expiry: expiry}

	rec := NewRecord(tok, "openid")

	// Go through JSON so numbers come back as float64, as they do from disk.
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	cred, ok := Normalize(decode(t, string(data)))
	require.True(t, ok)

	assert.Equal(t, ShapeNormal, cred.Shape)
	assert.Equal(t, "acc", cred.AccessToken)
	assert.Equal(t, "ref", cred.RefreshToken)
	assert.Equal(t, "openid", cred.Scope)
	assert.Equal(t, expiry.UnixMilli(), cred.Expiry.UnixMilli())
}

func TestCredential_OAuth2TokenDefaultsType(t *testing.T) {
	tok := Credential{AccessToken: "a"}.OAuth2Token()
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "a", tok.AccessToken)
}
