package calendar_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/server"
	"github.com/teemow/meetwise/internal/tools/common"
)

// RegisterAccountTools registers connectivity and account tools.
func RegisterAccountTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	validateTool := mcp.NewTool("calendar_validate",
		mcp.WithDescription("Check that Google Calendar is reachable with the stored credentials"),
	)
	s.AddTool(validateTool, common.InstrumentedToolHandler("calendar_validate", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleValidate(ctx, sc)
		}))

	accountTool := mcp.NewTool("calendar_account",
		mcp.WithDescription("Show the signed-in Google account and its primary calendar"),
	)
	s.AddTool(accountTool, common.InstrumentedToolHandler("calendar_account", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAccount(ctx, sc)
		}))

	return nil
}

func handleValidate(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	info, err := sc.Calendar().CheckConnection(ctx)
	if err != nil {
		return mcp.NewToolResultError(calendar.UserMessage(err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Google Calendar is available (calendar: %s)", info.Summary)), nil
}

func handleAccount(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	account, err := sc.Account(ctx)
	if err != nil {
		return mcp.NewToolResultError(calendar.UserMessage(err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Email: %s\n", account.Email)
	if account.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", account.Name)
	}
	fmt.Fprintf(&b, "Calendar: %s\n", account.CalendarName)
	if account.TimeZone != "" {
		fmt.Fprintf(&b, "Time Zone: %s\n", account.TimeZone)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
