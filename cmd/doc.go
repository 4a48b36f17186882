// Package cmd implements the command-line interface for meetwise.
//
// This package provides the following commands:
//   - serve: Run the dashboard, its JSON API and the MCP endpoint
//   - mcp: Serve the MCP tools over stdio
//   - auth: Sign in, inspect or clear the stored Google credential
//   - events: List upcoming or past meetings, optionally following updates
//   - insights: Summarize or analyze meetings with the configured AI backend
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
