package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/meetwise/internal/instrumentation"
	"github.com/teemow/meetwise/internal/logging"
	"github.com/teemow/meetwise/internal/server"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// serveOptions collects the serve command's flags.
type serveOptions struct {
	httpAddr           string
	googleClientID     string
	googleClientSecret string
	disableMCP         bool
	metrics            MetricsConfig
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long: `Start the web dashboard, its JSON API and the streamable HTTP MCP endpoint.

The dashboard keeps the calendar in sync in the background while a browser
is signed in and pushes updates over a websocket.

OAuth Configuration:
  Google sign-in needs an OAuth client:
    --google-client-id and --google-client-secret flags
    OR GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars
  The redirect URL registered with Google must be <base-url>/auth/google/callback.

Endpoints:
  /                      dashboard
  /api/...               JSON API
  /mcp                   MCP (streamable HTTP), unless --disable-mcp
  /healthz, /readyz      health checks
  <metrics-addr>/metrics Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					opts.metrics.Addr = addr
				}
			}
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				opts.metrics.Enabled = false
			}
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", ":3000", "HTTP server address")
	cmd.Flags().StringVar(&opts.googleClientID, "google-client-id", "", "Google OAuth Client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&opts.googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().BoolVar(&opts.disableMCP, "disable-mcp", false, "Do not expose the MCP endpoint on /mcp")
	cmd.Flags().BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.metrics.Addr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.googleClientID != "" {
		cfg.GoogleClientID = opts.googleClientID
	}
	if opts.googleClientSecret != "" {
		cfg.GoogleClientSecret = opts.googleClientSecret
	}

	logger := slog.Default()

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metrics.Enabled && provider.Gatherer() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	sc, err := server.NewServerContext(ctx, cfg,
		server.WithMetrics(provider.Metrics()),
		server.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	var httpOpts []server.HTTPOption
	if !opts.disableMCP {
		mcpSrv, err := newMCPServer(sc)
		if err != nil {
			_ = sc.Shutdown()
			return err
		}
		httpOpts = append(httpOpts, server.WithMCPServer(mcpSrv))
	}

	httpServer, err := server.NewHTTPServer(sc, httpOpts...)
	if err != nil {
		_ = sc.Shutdown()
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	if sc.OAuthConfig() == nil {
		logger.Warn("Google sign-in is disabled: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}
	logger.Info("AI backend selected", logging.Backend(sc.Insights().BackendName()))

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Start(ctx, opts.httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	fmt.Printf("meetwise dashboard listening on %s\n", opts.httpAddr)
	fmt.Printf("  Dashboard: %s/\n", cfg.BaseURL)
	if !opts.disableMCP {
		fmt.Printf("  MCP endpoint: %s/mcp\n", cfg.BaseURL)
	}
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if metricsServer != nil {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsServer.Addr())
	}

	select {
	case err := <-serverErr:
		if err != nil {
			_ = sc.Shutdown()
			return fmt.Errorf("server stopped with error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer shutdownCancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during metrics server shutdown", logging.Err(err))
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}
