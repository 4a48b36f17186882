// Package common provides shared utilities for MCP tool implementations:
// handler instrumentation and argument parsing.
package common
