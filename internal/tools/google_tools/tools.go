package google_tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/google"
	"github.com/teemow/meetwise/internal/server"
	"github.com/teemow/meetwise/internal/tools/common"
)

// authFlow remembers the state of the most recent consent URL.
type authFlow struct {
	mu    sync.Mutex
	state string
}

func (f *authFlow) begin() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = google.NewState()
	return f.state
}

func (f *authFlow) pending() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *authFlow) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = ""
}

// RegisterGoogleTools registers the sign-in tools with the MCP server
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	flow := &authFlow{}

	getAuthURLTool := mcp.NewTool("google_get_auth_url",
		mcp.WithDescription("Get the OAuth URL to grant read access to Google Calendar"),
	)
	s.AddTool(getAuthURLTool, common.InstrumentedToolHandler("google_get_auth_url", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAuthURL(ctx, request, sc, flow)
		}))

	saveAuthCodeTool := mcp.NewTool("google_save_auth_code",
		mcp.WithDescription("Complete Google sign-in with the authorization code and save the credential file"),
		mcp.WithString("authCode",
			mcp.Required(),
			mcp.Description("The authorization code, or the full callback URL from the browser address bar"),
		),
	)
	s.AddTool(saveAuthCodeTool, common.InstrumentedToolHandler("google_save_auth_code", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSaveAuthCode(ctx, request, sc, flow)
		}))

	return nil
}

const notConfigured = "Google sign-in is not configured. Set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET and restart."

func handleGetAuthURL(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext, flow *authFlow) (*mcp.CallToolResult, error) {
	if sc.OAuthConfig() == nil {
		return mcp.NewToolResultError(notConfigured), nil
	}

	authURL := google.AuthURL(sc.OAuthConfig(), flow.begin())

	result := fmt.Sprintf(`To connect Google Calendar:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account and grant calendar access
3. Google redirects to %s. If the dashboard is not running the page will not load; that is fine.
4. Copy the "code" parameter, or the whole URL from the address bar

5. Call the google_save_auth_code tool with it to complete authentication`, authURL, sc.OAuthConfig().RedirectURL)

	return mcp.NewToolResultText(result), nil
}

func handleSaveAuthCode(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, flow *authFlow) (*mcp.CallToolResult, error) {
	if sc.OAuthConfig() == nil {
		return mcp.NewToolResultError(notConfigured), nil
	}

	input := common.StringArg(request.GetArguments(), "authCode", "")
	if input == "" {
		return mcp.NewToolResultError("authCode is required"), nil
	}

	code, err := google.ParseAuthCode(input, flow.pending())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid authorization response: %v. Call google_get_auth_url to start again.", err)), nil
	}

	profile, err := sc.CompleteLogin(ctx, code)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to complete sign-in: %v", err)), nil
	}
	flow.finish()

	return mcp.NewToolResultText(fmt.Sprintf("Signed in as %s. Calendar and insight tools are ready.", profile.Email)), nil
}
