package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures the process-wide logger.
type Options struct {
	// Debug lowers the level to slog.LevelDebug.
	Debug bool
	// Format is "text" (default) or "json".
	Format string
	// Output defaults to os.Stderr. Stdout is reserved for command output
	// and the MCP stdio transport.
	Output io.Writer
}

// sensitiveKeys are attribute keys whose values are credentials. They are
// masked even when a caller forgets to wrap them with Token.
var sensitiveKeys = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"accesstoken":   true,
	"credential":    true,
	"authorization": true,
	"api_key":       true,
	"client_secret": true,
}

// redact is a slog ReplaceAttr hook masking sensitiveKeys.
func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, SanitizeToken(a.Value.String()))
	}
	return a
}

// New builds a logger from opts.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts))
}

// Setup builds a logger from opts and installs it as slog's default.
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}
