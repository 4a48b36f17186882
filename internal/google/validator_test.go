package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokeninfoServer(t *testing.T, handler func(w http.ResponseWriter, token string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/tokeninfo"), "unexpected path %s", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		handler(w, r.Form.Get("access_token"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTokeninfo(w http.ResponseWriter, scope string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"email":      "jane@example.com",
		"scope":      scope,
		"expires_in": 3599,
	})
}

func TestValidator_ValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		handler func(w http.ResponseWriter, token string)
		want    bool
	}{
		{
			name:  "calendar scope granted",
			token: "good",
			handler: func(w http.ResponseWriter, token string) {
				writeTokeninfo(w, "openid "+ScopeUserinfoEmail+" "+ScopeCalendarReadonly)
			},
			want: true,
		},
		{
			name:  "calendar scope missing",
			token: "narrow",
			handler: func(w http.ResponseWriter, token string) {
				writeTokeninfo(w, "openid "+ScopeUserinfoEmail)
			},
			want: false,
		},
		{
			name:  "token rejected",
			token: "revoked",
			handler: func(w http.ResponseWriter, token string) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokeninfoServer(t, func(w http.ResponseWriter, token string) {
				assert.Equal(t, tt.token, token)
				tt.handler(w, token)
			})
			v := NewValidator(WithValidatorEndpoint(srv.URL + "/"))
			assert.Equal(t, tt.want, v.ValidateToken(context.Background(), tt.token))
		})
	}
}

func TestValidator_EmptyTokenIsInvalid(t *testing.T) {
	v := NewValidator(WithValidatorEndpoint("http://127.0.0.1:0/"))
	assert.False(t, v.ValidateToken(context.Background(), ""))
}

func TestValidator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newTokeninfoServer(t, func(w http.ResponseWriter, token string) {
		<-release
	})
	defer close(release)

	v := NewValidator(WithValidatorEndpoint(srv.URL+"/"), WithValidatorTimeout(50*time.Millisecond))

	start := time.Now()
	assert.False(t, v.ValidateToken(context.Background(), "slow"))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValidator_Inspect(t *testing.T) {
	srv := newTokeninfoServer(t, func(w http.ResponseWriter, token string) {
		writeTokeninfo(w, "openid "+ScopeCalendarReadonly)
	})
	v := NewValidator(WithValidatorEndpoint(srv.URL + "/"))

	info, err := v.Inspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", info.Email)
	assert.True(t, info.HasScope(ScopeCalendarReadonly))
	assert.Equal(t, 3599*time.Second, info.ExpiresIn)
}
