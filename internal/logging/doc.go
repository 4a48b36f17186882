// Package logging provides structured logging utilities for meetwise.
//
// All packages log through log/slog. This package holds the shared attribute
// keys and helpers so that a sync cycle, an insight request and an HTTP call
// can be correlated in the same output.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "calendar.list_events")
//	logger.Info("fetched events",
//	    logging.Window("upcoming"),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - User emails are hashed (UserHash) so entries can be correlated without PII
//   - Access and refresh tokens are only ever logged through SanitizeToken
package logging
