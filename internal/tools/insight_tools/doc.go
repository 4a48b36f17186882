// Package insight_tools provides MCP tools that summarize a meeting or
// analyze a set of meetings with the configured AI backend.
package insight_tools
