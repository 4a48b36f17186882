package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Attribute keys shared by every package.
const (
	KeyOperation = "operation"
	KeyComponent = "component"
	KeyUserHash  = "user_hash"
	KeyDomain    = "user_domain"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyWindow    = "window"
	KeySource    = "source"
	KeyBackend   = "backend"
	KeyState     = "state"
	KeyToken     = "token"
)

// Status values. The instrumentation package imports logging, so these
// mirror instrumentation.StatusSuccess and StatusError.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

func Tool(tool string) slog.Attr { return slog.String(KeyTool, tool) }

func Status(status string) slog.Attr { return slog.String(KeyStatus, status) }

// Window names a calendar fetch window: upcoming or past.
func Window(window string) slog.Attr { return slog.String(KeyWindow, window) }

// Source tells whether insight text came from the AI backend or the fallback.
func Source(source string) slog.Attr { return slog.String(KeySource, source) }

func Backend(backend string) slog.Attr { return slog.String(KeyBackend, backend) }

// State is a sync scheduler state.
func State(state string) slog.Attr { return slog.String(KeyState, state) }

// Err returns the error attribute. A nil error yields an empty group, which
// slog drops, so callers can pass errors unconditionally.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an email so log lines can be correlated without
// recording the address.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "user:" + hex.EncodeToString(hash[:8])
}

func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken keeps only the length of a credential.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

func Token(token string) slog.Attr {
	return slog.String(KeyToken, SanitizeToken(token))
}

// ExtractDomain returns the part after the @, or "" for a malformed address.
func ExtractDomain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return strings.ToLower(domain)
}

// Domain is a lower-cardinality alternative to UserHash for dashboards.
func Domain(email string) slog.Attr {
	return slog.String(KeyDomain, ExtractDomain(email))
}
