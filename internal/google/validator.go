package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/teemow/meetwise/internal/logging"
)

// DefaultValidationTimeout bounds a single tokeninfo call.
const DefaultValidationTimeout = 10 * time.Second

// TokenInfo is the subset of Google's tokeninfo response meetwise uses.
type TokenInfo struct {
	Email     string
	Scopes    []string
	ExpiresIn time.Duration
}

// HasScope reports whether scope was granted.
func (t *TokenInfo) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Validator checks access tokens against Google's tokeninfo endpoint.
type Validator struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	logger   *slog.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorEndpoint overrides the API base URL.
func WithValidatorEndpoint(endpoint string) ValidatorOption {
	return func(v *Validator) { v.endpoint = endpoint }
}

// WithValidatorTimeout overrides DefaultValidationTimeout.
func WithValidatorTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.timeout = d }
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

// NewValidator returns a Validator using an unauthenticated HTTP client;
// the token under test travels in the request body.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		client:  &http.Client{Transport: NewBaseTransport()},
		timeout: DefaultValidationTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Inspect returns the tokeninfo for accessToken.
func (v *Validator) Inspect(ctx context.Context, accessToken string) (*TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	opts := []option.ClientOption{option.WithHTTPClient(v.client)}
	if v.endpoint != "" {
		opts = append(opts, option.WithEndpoint(v.endpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokeninfo service: %w", err)
	}

	info, err := svc.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	return &TokenInfo{
		Email:     info.Email,
		Scopes:    strings.Fields(info.Scope),
		ExpiresIn: time.Duration(info.ExpiresIn) * time.Second,
	}, nil
}

// ValidateToken reports whether accessToken is live and carries the calendar
// scope. Any failure, including a timeout, counts as invalid.
func (v *Validator) ValidateToken(ctx context.Context, accessToken string) bool {
	logger := logging.WithOperation(v.logger, "google.validate_token")
	if accessToken == "" {
		return false
	}

	info, err := v.Inspect(ctx, accessToken)
	if err != nil {
		logger.Debug("token validation failed", logging.Token(accessToken), logging.Err(err))
		return false
	}
	if !info.HasScope(RequiredCalendarScope) {
		logger.Info("token lacks calendar scope", logging.UserHash(info.Email))
		return false
	}
	return true
}
