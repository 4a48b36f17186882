package google_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/meetwise/internal/config"
	"github.com/teemow/meetwise/internal/credentials"
	"github.com/teemow/meetwise/internal/server"
)

func newFakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "new-access",
				"refresh_token": "new-refresh",
				"token_type":    "Bearer",
				"expires_in":    3600,
			})
		case strings.HasSuffix(r.URL.Path, "/userinfo"):
			_ = json.NewEncoder(w).Encode(map[string]any{"email": "ada@example.com", "name": "Ada"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestContext(t *testing.T, withOAuth bool) (*server.ServerContext, string) {
	t.Helper()
	g := newFakeGoogle(t)
	path := filepath.Join(t.TempDir(), "tokens.json")
	cfg := config.Config{
		TokenPath: path,
		BaseURL:   config.DefaultBaseURL,
		AI:        config.AIConfig{Provider: config.ProviderNone},
	}

	opts := []server.ContextOption{server.WithUserinfoEndpoint(g.URL + "/")}
	if withOAuth {
		opts = append(opts, server.WithOAuthConfig(&oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  cfg.RedirectURL(),
			Endpoint: oauth2.Endpoint{
				AuthURL:   g.URL + "/auth",
				TokenURL:  g.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}))
	}

	sc, err := server.NewServerContext(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, path
}

func callTool(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterGoogleTools(t *testing.T) {
	sc, _ := newTestContext(t, true)
	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterGoogleTools(s, sc))

	tools := s.ListTools()
	assert.Contains(t, tools, "google_get_auth_url")
	assert.Contains(t, tools, "google_save_auth_code")
}

func TestSignInFlow(t *testing.T) {
	sc, path := newTestContext(t, true)
	flow := &authFlow{}

	res, err := handleGetAuthURL(context.Background(), callTool(nil), sc, flow)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "access_type=offline")
	require.NotEmpty(t, flow.pending())

	callback := sc.OAuthConfig().RedirectURL + "?" + url.Values{
		"code":  {"auth-code"},
		"state": {flow.pending()},
	}.Encode()
	res, err = handleSaveAuthCode(context.Background(), callTool(map[string]any{"authCode": callback}), sc, flow)
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, text(t, res), "Signed in as ada@example.com")
	assert.Empty(t, flow.pending())

	cred, err := credentials.NewFileStore(path).Read()
	require.NoError(t, err)
	normal, ok := cred["normal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new-access", normal["access_token"])
	assert.Equal(t, "new-refresh", normal["refresh_token"])
}

func TestSaveAuthCode_RejectsStaleState(t *testing.T) {
	sc, _ := newTestContext(t, true)
	flow := &authFlow{}
	flow.begin()

	res, err := handleSaveAuthCode(context.Background(), callTool(map[string]any{
		"authCode": sc.OAuthConfig().RedirectURL + "?code=auth-code&state=old",
	}), sc, flow)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid OAuth state")
}

func TestSaveAuthCode_MissingCode(t *testing.T) {
	sc, _ := newTestContext(t, true)

	res, err := handleSaveAuthCode(context.Background(), callTool(nil), sc, &authFlow{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTools_NotConfigured(t *testing.T) {
	sc, _ := newTestContext(t, false)
	flow := &authFlow{}

	res, err := handleGetAuthURL(context.Background(), callTool(nil), sc, flow)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "GOOGLE_CLIENT_ID")

	res, err = handleSaveAuthCode(context.Background(), callTool(map[string]any{"authCode": "x"}), sc, flow)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
