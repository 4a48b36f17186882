package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/config"
	"github.com/teemow/meetwise/internal/credentials"
	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/insights"
	"github.com/teemow/meetwise/internal/session"
)

// fakeGoogle serves the calendar, userinfo, tokeninfo and token endpoints.
type fakeGoogle struct {
	srv          *httptest.Server
	eventsStatus atomic.Int32
	eventCalls   atomic.Int32
	scope        atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{}
	g.scope.Store(google.ScopeCalendarReadonly)
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGoogle) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/calendars/primary/events":
		g.eventCalls.Add(1)
		if status := int(g.eventsStatus.Load()); status != 0 {
			respondJSON(w, status, map[string]any{"error": map[string]any{
				"code": status, "message": "request failed",
			}})
			return
		}
		start := time.Now().Add(time.Hour).UTC()
		respondJSON(w, http.StatusOK, map[string]any{"items": []map[string]any{{
			"id":          "evt-1",
			"summary":     "Planning",
			"start":       map[string]any{"dateTime": start.Format(time.RFC3339)},
			"end":         map[string]any{"dateTime": start.Add(30 * time.Minute).Format(time.RFC3339)},
			"hangoutLink": "https://meet.google.com/abc-defg-hij",
			"attendees":   []map[string]any{{"email": "ada@example.com", "displayName": "Ada"}},
		}}})
	case r.URL.Path == "/calendars/primary":
		respondJSON(w, http.StatusOK, map[string]any{
			"id": "ada@example.com", "summary": "Ada Lovelace", "timeZone": "Europe/London",
		})
	case strings.HasSuffix(r.URL.Path, "/userinfo"):
		respondJSON(w, http.StatusOK, map[string]any{
			"email": "ada@example.com", "name": "Ada Lovelace", "picture": "https://example.com/ada.png",
		})
	case strings.HasSuffix(r.URL.Path, "/tokeninfo"):
		respondJSON(w, http.StatusOK, map[string]any{
			"email": "ada@example.com", "scope": g.scope.Load().(string), "expires_in": 3599,
		})
	case r.URL.Path == "/token":
		respondJSON(w, http.StatusOK, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         google.ScopeCalendarReadonly,
		})
	default:
		http.NotFound(w, r)
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type testEnv struct {
	server *HTTPServer
	sc     *ServerContext
	store  *credentials.FileStore
	google *fakeGoogle
}

func newTestEnv(t *testing.T, opts ...ContextOption) *testEnv {
	t.Helper()
	g := newFakeGoogle(t)
	store := credentials.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	cfg := config.Config{
		BaseURL:           "http://localhost:3000",
		PollInterval:      time.Hour,
		MaxResults:        10,
		ValidationTimeout: 5 * time.Second,
		AI:                config.AIConfig{Provider: config.ProviderNone},
	}
	oauthConf := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       google.DefaultOAuthScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   g.srv.URL + "/auth",
			TokenURL:  g.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	base := []ContextOption{
		WithStore(store),
		WithOAuthConfig(oauthConf),
		WithCalendarClient(calendar.NewClient(nil, calendar.WithEndpoint(g.srv.URL+"/"))),
		WithValidator(google.NewValidator(google.WithValidatorEndpoint(g.srv.URL + "/"))),
		WithGenerator(insights.NewGenerator(nil)),
		WithUserinfoEndpoint(g.srv.URL + "/"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	sc, err := NewServerContext(context.Background(), cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	srv, err := NewHTTPServer(sc)
	require.NoError(t, err)
	return &testEnv{server: srv, sc: sc, store: store, google: g}
}

func (e *testEnv) writeToken(t *testing.T) {
	t.Helper()
	require.NoError(t, e.store.Write(credentials.Record{
		"normal": map[string]any{
			"access_token":  "stored-access",
			"refresh_token": "stored-refresh",
			"scope":         google.ScopeCalendarReadonly,
			"token_type":    "Bearer",
		},
	}))
}

func (e *testEnv) do(t *testing.T, method, path string, body any, signedIn bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signedIn {
		req.AddCookie(sessionCookie(t))
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	value, err := session.Encode(session.Record{Email: "ada@example.com", Name: "Ada", AuthMethod: session.AuthMethodOAuth})
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieName, Value: value}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
