// Package server wires the meetwise dependencies together and serves the
// browser dashboard.
//
// ServerContext owns the credential store, the Google clients, the insight
// generator and the sync scheduler. HTTPServer exposes them as a JSON API
// under /api, the Google sign-in flow under /auth, a websocket that streams
// scheduler snapshots, health probes and, optionally, the MCP tools at /mcp.
// MetricsServer serves Prometheus metrics on a separate port.
//
// Every API response carries "success". Failures add "error" and, when the
// user has to sign in again, "needsAuth".
package server
