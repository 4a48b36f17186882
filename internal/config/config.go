package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AI provider names accepted by MEETWISE_AI_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Defaults.
const (
	DefaultPollInterval      = 5 * time.Minute
	DefaultMaxResults        = 10
	DefaultUpcomingWindow    = 30 * 24 * time.Hour
	DefaultPastWindow        = 7 * 24 * time.Hour
	DefaultValidationTimeout = 10 * time.Second
	DefaultAITimeout         = 30 * time.Second
	DefaultBaseURL           = "http://localhost:3000"
	DefaultGeminiModel       = "gemini-1.5-flash"
	DefaultOpenAIBaseURL     = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel       = "llama3-8b-8192"

	// tokenDirName is shared with the google-calendar-mcp tooling so both read
	// the same credential file.
	tokenDirName  = "google-calendar-mcp"
	tokenFileName = "tokens.json"
)

// Config is the process configuration. Values come from the environment and
// may be overridden by command-line flags.
type Config struct {
	// TokenPath is the on-disk credential file.
	TokenPath string

	// GoogleClientID and GoogleClientSecret identify the OAuth client.
	GoogleClientID     string
	GoogleClientSecret string

	// BaseURL is the externally reachable URL of the dashboard. The OAuth
	// redirect URL is derived from it.
	BaseURL string

	PollInterval      time.Duration
	MaxResults        int
	UpcomingWindow    time.Duration
	PastWindow        time.Duration
	ValidationTimeout time.Duration

	// ValidateBeforeSync runs a tokeninfo pre-flight before every sync cycle.
	ValidateBeforeSync bool

	AI AIConfig
}

// AIConfig selects and configures the insight backend.
type AIConfig struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// RateLimit is the number of backend calls per minute. Zero disables limiting.
	RateLimit float64
	Timeout   time.Duration
}

// Load returns a Config with defaults applied from environment variables.
func Load() Config {
	return Config{
		TokenPath:          getEnvOrDefault("MEETWISE_TOKEN_PATH", DefaultTokenPath()),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		BaseURL:            getEnvOrDefault("MEETWISE_BASE_URL", DefaultBaseURL),
		PollInterval:       getEnvDurationOrDefault("MEETWISE_POLL_INTERVAL", DefaultPollInterval),
		MaxResults:         getEnvIntOrDefault("MEETWISE_MAX_RESULTS", DefaultMaxResults),
		UpcomingWindow:     getEnvDurationOrDefault("MEETWISE_UPCOMING_WINDOW", DefaultUpcomingWindow),
		PastWindow:         getEnvDurationOrDefault("MEETWISE_PAST_WINDOW", DefaultPastWindow),
		ValidationTimeout:  getEnvDurationOrDefault("MEETWISE_VALIDATION_TIMEOUT", DefaultValidationTimeout),
		ValidateBeforeSync: getEnvBoolOrDefault("MEETWISE_VALIDATE_BEFORE_SYNC", false),
		AI: AIConfig{
			Provider:      getEnvOrDefault("MEETWISE_AI_PROVIDER", defaultProvider()),
			GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
			GeminiModel:   getEnvOrDefault("MEETWISE_GEMINI_MODEL", DefaultGeminiModel),
			OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", os.Getenv("GROQ_API_KEY")),
			OpenAIBaseURL: getEnvOrDefault("MEETWISE_OPENAI_BASE_URL", DefaultOpenAIBaseURL),
			OpenAIModel:   getEnvOrDefault("MEETWISE_OPENAI_MODEL", DefaultOpenAIModel),
			RateLimit:     getEnvFloatOrDefault("MEETWISE_AI_RATE_LIMIT", 30),
			Timeout:       getEnvDurationOrDefault("MEETWISE_AI_TIMEOUT", DefaultAITimeout),
		},
	}
}

// RedirectURL is the OAuth callback URL registered with Google.
func (c *Config) RedirectURL() string {
	return c.BaseURL + "/auth/google/callback"
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.TokenPath == "" {
		return fmt.Errorf("token path cannot be empty")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1s, got %s", c.PollInterval)
	}
	if c.MaxResults < 1 || c.MaxResults > 2500 {
		return fmt.Errorf("max results must be between 1 and 2500, got %d", c.MaxResults)
	}
	if c.UpcomingWindow <= 0 || c.PastWindow <= 0 {
		return fmt.Errorf("fetch windows must be positive")
	}
	if c.ValidationTimeout <= 0 {
		return fmt.Errorf("validation timeout must be positive")
	}
	if err := ValidateBaseURL(c.BaseURL); err != nil {
		return err
	}

	switch c.AI.Provider {
	case ProviderNone, "":
	case ProviderGemini:
		if c.AI.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.AI.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY or GROQ_API_KEY is required for the openai provider")
		}
		if _, err := url.Parse(c.AI.OpenAIBaseURL); err != nil {
			return fmt.Errorf("invalid openai base URL: %w", err)
		}
	default:
		return fmt.Errorf("invalid AI provider %q, must be one of: gemini, openai, none", c.AI.Provider)
	}
	if c.AI.RateLimit < 0 {
		return fmt.Errorf("AI rate limit cannot be negative")
	}
	return nil
}

// RequireOAuthClient returns an error when the Google OAuth client is not configured.
func (c *Config) RequireOAuthClient() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	return nil
}

// ValidateBaseURL allows plain HTTP only for loopback hosts.
func ValidateBaseURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth redirects require HTTPS outside localhost (got: %s)", baseURL)
		}
	default:
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}
	return nil
}

// DefaultTokenPath returns <user config dir>/google-calendar-mcp/tokens.json.
func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, tokenDirName, tokenFileName)
}

func defaultProvider() string {
	switch {
	case os.Getenv("GEMINI_API_KEY") != "":
		return ProviderGemini
	case os.Getenv("OPENAI_API_KEY") != "", os.Getenv("GROQ_API_KEY") != "":
		return ProviderOpenAI
	default:
		return ProviderNone
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("5m") or a bare number of seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
