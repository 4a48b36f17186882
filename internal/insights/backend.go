package insights

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by a backend that answered without text.
var ErrEmptyResponse = errors.New("backend returned no text")

// Request is one prompt sent to a backend.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Backend is a large-language-model vendor. Implementations return the
// generated text or an error; the Generator turns any error into a fallback.
type Backend interface {
	// Name identifies the backend in logs, metrics and responses.
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
