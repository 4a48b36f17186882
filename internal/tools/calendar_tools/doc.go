// Package calendar_tools provides MCP (Model Context Protocol) tools for the
// primary Google Calendar of this installation.
//
// The tools read the same credential file as the dashboard and return
// plain-text listings suitable for an AI assistant.
package calendar_tools
