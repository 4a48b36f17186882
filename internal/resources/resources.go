package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/server"
)

const (
	ProfileURI     = "user://profile"
	CredentialsURI = "meetwise://credentials"
	SyncStateURI   = "meetwise://sync/state"
)

// RegisterResources registers the account and sync resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	profile := mcp.NewResource(
		ProfileURI,
		"Current User Profile",
		mcp.WithResourceDescription("The signed-in Google account and its primary calendar"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(profile, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleProfile(ctx, request, sc)
	})

	creds := mcp.NewResource(
		CredentialsURI,
		"Credential Status",
		mcp.WithResourceDescription("Whether a credential file is present, its shape and expiry. Never includes token values."),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(creds, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCredentials(request, sc)
	})

	syncState := mcp.NewResource(
		SyncStateURI,
		"Calendar Sync State",
		mcp.WithResourceDescription("The latest snapshot held by the background calendar sync"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(syncState, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSyncState(request, sc)
	})

	return nil
}

func handleProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	account, err := sc.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %s", calendar.UserMessage(err))
	}
	return jsonContents(request.Params.URI, account)
}

func handleCredentials(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, server.InspectCredentials(sc.Store(), time.Now()))
}

func handleSyncState(request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, sc.Scheduler().Snapshot())
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
