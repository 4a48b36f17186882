package insight_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/calendar"
	"github.com/teemow/meetwise/internal/insights"
	"github.com/teemow/meetwise/internal/server"
	calsync "github.com/teemow/meetwise/internal/sync"
	"github.com/teemow/meetwise/internal/tools/batch"
	"github.com/teemow/meetwise/internal/tools/calendar_tools"
	"github.com/teemow/meetwise/internal/tools/common"
)

// summarizeConcurrency bounds parallel backend calls for one batch request.
const summarizeConcurrency = 3

// RegisterInsightTools registers the meeting summary and analysis tools.
func RegisterInsightTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	summarizeTool := mcp.NewTool("meeting_summarize",
		mcp.WithDescription("Summarize calendar events. Falls back to a short factual line when no AI backend answers."),
		mcp.WithString("eventIds",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Event ID or array of up to %d event IDs, as shown by calendar_list_upcoming or calendar_list_past", batch.MaxItems)),
		),
		mcp.WithString("window",
			mcp.Description("Where to look for the event: 'upcoming' (default) or 'past'"),
			mcp.Enum(calsync.WindowUpcoming, calsync.WindowPast),
		),
	)
	s.AddTool(summarizeTool, common.InstrumentedToolHandler("meeting_summarize", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSummarize(ctx, request, sc)
		}))

	analyzeTool := mcp.NewTool("meetings_analyze",
		mcp.WithDescription("Analyze the meetings in a window for patterns and recommendations"),
		mcp.WithString("window",
			mcp.Description("Which meetings to analyze: 'upcoming' (default) or 'past'"),
			mcp.Enum(calsync.WindowUpcoming, calsync.WindowPast),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events to analyze (default: %d)", calendar.DefaultMaxResults)),
		),
	)
	s.AddTool(analyzeTool, common.InstrumentedToolHandler("meetings_analyze", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAnalyze(ctx, request, sc)
		}))

	return nil
}

func windowArg(args map[string]any) (string, error) {
	window := common.StringArg(args, "window", calsync.WindowUpcoming)
	if window != calsync.WindowUpcoming && window != calsync.WindowPast {
		return "", fmt.Errorf("window must be %q or %q", calsync.WindowUpcoming, calsync.WindowPast)
	}
	return window, nil
}

func handleSummarize(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ids, err := batch.IDs(args["eventIds"], "eventIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	window, err := windowArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := calendar_tools.FetchWindow(ctx, sc, window, 0)
	if err != nil {
		return mcp.NewToolResultError(calendar.UserMessage(err)), nil
	}
	byID := make(map[string]calendar.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	summarize := func(ctx context.Context, id string) (string, error) {
		e, ok := byID[id]
		if !ok {
			return "", fmt.Errorf("event %q not found in %s events", id, window)
		}
		return noteFallback(sc.Insights().Summarize(ctx, e)), nil
	}

	if len(ids) == 1 {
		text, err := summarize(ctx, ids[0])
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}

	out, err := batch.Format(batch.Process(ctx, ids, summarizeConcurrency, summarize))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func handleAnalyze(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	window, err := windowArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxResults, err := common.IntArg(args, "maxResults", sc.Config().MaxResults)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	events, err := calendar_tools.FetchWindow(ctx, sc, window, maxResults)
	if err != nil {
		return mcp.NewToolResultError(calendar.UserMessage(err)), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No %s meetings to analyze.", window)), nil
	}
	return mcp.NewToolResultText(noteFallback(sc.Insights().Analyze(ctx, events))), nil
}

// noteFallback marks text that came from the fallback.
func noteFallback(res insights.Result) string {
	if res.Fallback() {
		return res.Text + "\n\n(AI unavailable; basic summary shown)"
	}
	return res.Text
}
