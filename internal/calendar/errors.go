package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/teemow/meetwise/internal/credentials"
)

// Kind classifies a calendar failure by what the caller should do about it.
type Kind int

const (
	// KindUpstream is any other non-2xx response. Retry later.
	KindUpstream Kind = iota
	// KindNotAuthenticated means there is no usable stored credential.
	KindNotAuthenticated
	// KindAuthExpired is a 401. The same token must not be retried.
	KindAuthExpired
	// KindScopeMissing is a 403 caused by insufficient OAuth scopes.
	KindScopeMissing
	// KindAccessDenied is any other 403.
	KindAccessDenied
	// KindNetwork covers transport failures and timeouts.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindAuthExpired:
		return "auth_expired"
	case KindScopeMissing:
		return "scope_missing"
	case KindAccessDenied:
		return "access_denied"
	case KindNetwork:
		return "network"
	default:
		return "upstream"
	}
}

// Error is returned by every Client method.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	// Body is the raw upstream response body for KindUpstream.
	Body string
	Err  error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("calendar %s: %s (HTTP %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("calendar %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NeedsAuth reports whether the user has to sign in (or re-grant access)
// before the call can succeed.
func (e *Error) NeedsAuth() bool {
	switch e.Kind {
	case KindNotAuthenticated, KindAuthExpired, KindScopeMissing:
		return true
	}
	return false
}

// UserMessage is a short explanation suitable for the dashboard.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindNotAuthenticated:
		return "Not signed in. Please sign in with Google."
	case KindAuthExpired:
		return "Authentication failed. Please sign in again."
	case KindScopeMissing:
		return "Calendar access not granted. Please sign in again and allow calendar access."
	case KindAccessDenied:
		return "Access denied to Google Calendar."
	case KindNetwork:
		return "Google Calendar is unreachable. Please try again."
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("Google Calendar returned HTTP %d. Please try again.", e.StatusCode)
		}
		return "Google Calendar request failed. Please try again."
	}
}

// NeedsAuth reports whether err is a calendar error requiring sign-in.
func NeedsAuth(err error) bool {
	var calErr *Error
	if errors.As(err, &calErr) {
		return calErr.NeedsAuth()
	}
	return credentials.NeedsReauth(err)
}

// UserMessage returns a dashboard-friendly message for any error.
func UserMessage(err error) string {
	var calErr *Error
	if errors.As(err, &calErr) {
		return calErr.UserMessage()
	}
	if credentials.NeedsReauth(err) {
		return (&Error{Kind: KindNotAuthenticated}).UserMessage()
	}
	return "Something went wrong. Please try again."
}

// classify maps a failure from the Google client or the token source into *Error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var calErr *Error
	if errors.As(err, &calErr) {
		return err
	}

	if credentials.NeedsReauth(err) {
		return &Error{Kind: KindNotAuthenticated, Op: op, Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return fromAPIError(op, apiErr)
	}

	if isNetworkError(err) {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	var storageErr *credentials.StorageError
	if errors.As(err, &storageErr) {
		return &Error{Kind: KindNotAuthenticated, Op: op, Err: err}
	}

	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

func fromAPIError(op string, apiErr *googleapi.Error) *Error {
	e := &Error{Op: op, StatusCode: apiErr.Code, Body: apiErr.Body, Err: apiErr}

	switch apiErr.Code {
	case http.StatusUnauthorized:
		e.Kind = KindAuthExpired
	case http.StatusForbidden:
		if isScopeError(apiErr) {
			e.Kind = KindScopeMissing
		} else {
			e.Kind = KindAccessDenied
		}
	default:
		e.Kind = KindUpstream
	}
	return e
}

func isScopeError(apiErr *googleapi.Error) bool {
	if strings.Contains(strings.ToLower(apiErr.Message), "insufficient authentication scopes") ||
		strings.Contains(strings.ToLower(apiErr.Body), "insufficient authentication scopes") {
		return true
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "insufficientPermissions" || item.Reason == "ACCESS_TOKEN_SCOPE_INSUFFICIENT" {
			return true
		}
	}
	return false
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
