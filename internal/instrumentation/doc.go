// Package instrumentation provides OpenTelemetry metrics and tracing for meetwise.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds
//   - dashboard_connections: open live-update connections
//
// Google APIs:
//   - google_api_operations_total, google_api_operation_duration_seconds
//     by service (calendar, oauth2), operation and status
//
// OAuth:
//   - oauth_auth_total: sign-in attempts by result
//   - oauth_token_refresh_total: refreshes of the stored token by result
//
// Sync scheduler:
//   - sync_fetches_total, sync_fetch_duration_seconds by window and status
//
// Insights:
//   - insight_requests_total, insight_duration_seconds by kind, source
//     (ai or fallback) and backend
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// With the prometheus exporter every provider owns its own registry, which
// also carries the Go runtime and process collectors. Gatherer exposes it to
// the metrics server.
//
// # Tracing
//
// Spans are created for Google API calls (google.<service>.<operation>),
// sync window fetches (sync.fetch.<window>), insight requests
// (insight.<kind>) and MCP tools (tool.<name>). Cancelled fetches are
// marked with a cancelled attribute instead of an error status.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_METRIC_EXPORT_INTERVAL in milliseconds, for otlp and stdout (default: 10000)
//   - OTEL_SERVICE_NAME (default: meetwise)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordSyncFetch(ctx, "upcoming", instrumentation.StatusSuccess, time.Since(start))
package instrumentation
