package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/server"
	calsync "github.com/teemow/meetwise/internal/sync"
	"github.com/teemow/meetwise/internal/tools/common"
)

// RegisterEventTools registers the upcoming and past event listings.
func RegisterEventTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	upcomingTool := mcp.NewTool("calendar_list_upcoming",
		mcp.WithDescription("List upcoming events on the primary calendar"),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events to return (default: %d)", calendar.DefaultMaxResults)),
		),
	)
	s.AddTool(upcomingTool, common.InstrumentedToolHandler("calendar_list_upcoming", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListWindow(ctx, request, sc, calsync.WindowUpcoming)
		}))

	pastTool := mcp.NewTool("calendar_list_past",
		mcp.WithDescription("List recent past events on the primary calendar"),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events to return (default: %d)", calendar.DefaultMaxResults)),
		),
	)
	s.AddTool(pastTool, common.InstrumentedToolHandler("calendar_list_past", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListWindow(ctx, request, sc, calsync.WindowPast)
		}))

	return nil
}

// FetchWindow lists the named window using the configured window sizes.
func FetchWindow(ctx context.Context, sc *server.ServerContext, window string, maxResults int) ([]calendar.Event, error) {
	cfg := sc.Config()
	upcoming, past := calsync.Windows(time.Now(), cfg.UpcomingWindow, cfg.PastWindow)
	win := upcoming
	if window == calsync.WindowPast {
		win = past
	}
	return sc.Calendar().ListEvents(ctx, win.From, win.To, maxResults)
}

func handleListWindow(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, window string) (*mcp.CallToolResult, error) {
	maxResults, err := common.IntArg(request.GetArguments(), "maxResults", sc.Config().MaxResults)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := FetchWindow(ctx, sc, window, maxResults)
	if err != nil {
		return mcp.NewToolResultError(calendar.UserMessage(err)), nil
	}
	return mcp.NewToolResultText(FormatEvents(window, events, time.Now())), nil
}

// FormatEvents renders events as a numbered plain-text list.
func FormatEvents(window string, events []calendar.Event, now time.Time) string {
	if len(events) == 0 {
		return fmt.Sprintf("No %s events found.", window)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s event(s):\n\n", len(events), window)
	for i, e := range events {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e.Title)
		fmt.Fprintf(&b, "   ID: %s\n", e.ID)
		if start, ok := e.StartTime(); ok {
			when := calendar.RelativeDay(start, now)
			if e.AllDay() {
				when += ", all day"
			} else {
				when += ", " + start.Local().Format("15:04")
			}
			fmt.Fprintf(&b, "   When: %s\n", when)
		}
		if minutes := e.DurationMinutes(); minutes > 0 && !e.AllDay() {
			fmt.Fprintf(&b, "   Duration: %s\n", calendar.FormatDuration(minutes))
		}
		if names := e.AttendeeNames(); len(names) > 0 {
			fmt.Fprintf(&b, "   Attendees: %s\n", strings.Join(names, ", "))
		}
		if e.Location != "" {
			fmt.Fprintf(&b, "   Location: %s\n", e.Location)
		}
		if e.MeetingURL != "" {
			fmt.Fprintf(&b, "   Meeting: %s\n", e.MeetingURL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
