package insights

import (
	"context"
	"fmt"
	"net/http"

	"github.com/teemow/meetwise/internal/config"
)

// NewBackend builds the backend selected by cfg. It returns (nil, nil) for
// the "none" provider.
func NewBackend(ctx context.Context, cfg config.AIConfig, client *http.Client) (Backend, error) {
	switch cfg.Provider {
	case config.ProviderNone, "":
		return nil, nil
	case config.ProviderGemini:
		return NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.ProviderOpenAI:
		return NewOpenAIBackend(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, client), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// NewFromConfig builds a Generator with the backend, rate limit and timeout
// from cfg.
func NewFromConfig(ctx context.Context, cfg config.AIConfig, opts ...Option) (*Generator, error) {
	backend, err := NewBackend(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	base := []Option{WithRateLimit(cfg.RateLimit), WithTimeout(cfg.Timeout)}
	return NewGenerator(backend, append(base, opts...)...), nil
}
