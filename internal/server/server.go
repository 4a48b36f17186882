package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetwise/internal/config"
	"github.com/teemow/meetwise/internal/logging"
	calsync "github.com/teemow/meetwise/internal/sync"
)

// HTTPServer serves the dashboard, its JSON API, the sync websocket and,
// optionally, the MCP tools over streamable HTTP.
type HTTPServer struct {
	sc            *ServerContext
	hub           *Hub
	health        *HealthChecker
	mcpServer     *mcpserver.MCPServer
	httpServer    *http.Server
	logger        *slog.Logger
	secureCookies bool
}

// HTTPOption configures an HTTPServer.
type HTTPOption func(*HTTPServer)

// WithMCPServer mounts the MCP server at /mcp.
func WithMCPServer(m *mcpserver.MCPServer) HTTPOption {
	return func(s *HTTPServer) { s.mcpServer = m }
}

// NewHTTPServer creates the dashboard server. The configured base URL must
// be HTTPS unless it points at a loopback address.
func NewHTTPServer(sc *ServerContext, opts ...HTTPOption) (*HTTPServer, error) {
	baseURL := sc.Config().BaseURL
	if err := config.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	logger := logging.WithComponent(sc.Logger(), "http")
	s := &HTTPServer{
		sc:            sc,
		hub:           NewHub(sc.Scheduler(), sc.Metrics(), sc.Logger()),
		health:        NewHealthChecker(sc),
		logger:        logger,
		secureCookies: u.Scheme == "https",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Hub returns the websocket hub. Run must be called for websocket clients
// to receive snapshots; Start does that.
func (s *HTTPServer) Hub() *Hub {
	return s.hub
}

// Handler builds the routing table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, instrument(s.sc.Metrics(), s.logger, pattern, h))
	}

	handle("POST /api/calendar/upcoming", requireSession(s.handleListEvents(calsync.WindowUpcoming)))
	handle("POST /api/calendar/past", requireSession(s.handleListEvents(calsync.WindowPast)))
	handle("GET /api/calendar/validate", http.HandlerFunc(s.handleValidate))

	handle("GET /api/auth/status", http.HandlerFunc(s.handleStatus))
	handle("GET /api/auth/account", http.HandlerFunc(s.handleAccount))
	handle("POST /api/auth/clear", http.HandlerFunc(s.handleClear))
	handle("POST /api/auth/session", http.HandlerFunc(s.handleIDTokenSession))

	handle("POST /api/ai/summary", http.HandlerFunc(s.handleSummary))
	handle("POST /api/ai/insights", http.HandlerFunc(s.handleInsights))

	handle("GET /api/sync/state", requireSession(s.handleSyncState))
	handle("POST /api/sync/refresh", requireSession(s.handleSyncRefresh))
	handle("POST /api/sync/visibility", requireSession(s.handleSyncVisibility))
	handle("GET /api/sync/ws", requireSession(s.handleSyncWS))

	handle("GET /auth/google", http.HandlerFunc(s.handleLogin))
	handle("GET /auth/google/callback", http.HandlerFunc(s.handleCallback))
	handle("POST /auth/logout", http.HandlerFunc(s.handleLogout))

	if s.mcpServer != nil {
		handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcpServer, mcpserver.WithEndpointPath("/mcp")))
	}

	s.health.RegisterHealthEndpoints(mux)
	handle("/", http.HandlerFunc(s.handleDashboard))

	return mux
}

// Start runs the websocket hub and serves HTTP until Shutdown.
func (s *HTTPServer) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("starting dashboard", "addr", addr, "base_url", s.sc.Config().BaseURL)
	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server unready, stops accepting requests and stops
// the scheduler.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if scErr := s.sc.Shutdown(); scErr != nil && err == nil {
		err = scErr
	}
	return err
}
