package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/server"
)

// ToolHandler is the signature mcp-go expects for a tool.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, invocation
// metrics and a debug log line.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	logger := logging.WithComponent(sc.Logger(), "tools")

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		spanErr := err
		if spanErr == nil && result != nil && result.IsError {
			spanErr = errors.New("tool returned an error result")
		}
		status := instrumentation.StatusSuccess
		if spanErr != nil {
			status = instrumentation.StatusError
		}
		traceID := instrumentation.GetTraceID(ctx)
		instrumentation.EndSpan(span, spanErr)

		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		logger.Debug("tool invoked",
			logging.Tool(toolName),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, duration),
			slog.String("trace_id", traceID))

		return result, err
	}
}
