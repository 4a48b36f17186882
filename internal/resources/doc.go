// Package resources exposes read-only MCP resources for the signed-in
// account: the Google profile, the credential file status and the latest
// sync snapshot. Clients fetch them without invoking a tool.
package resources
