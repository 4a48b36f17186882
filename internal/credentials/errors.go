package credentials

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Read when no token file exists.
var ErrNotFound = errors.New("no stored credentials")

// ErrNoAccessToken is returned when a token file exists but none of the known
// shapes carries an access token. The user has to sign in again.
var ErrNoAccessToken = errors.New("stored credentials carry no access token")

// StorageError wraps a filesystem failure on the token file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("credential store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError means the token file exists but is not a JSON object.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("credential file %s is not valid JSON: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NeedsReauth reports whether err means the user must sign in again rather
// than retry later.
func NeedsReauth(err error) bool {
	var parseErr *ParseError
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoAccessToken) || errors.As(err, &parseErr)
}
