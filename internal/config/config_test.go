package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MEETWISE_TOKEN_PATH", "MEETWISE_BASE_URL", "MEETWISE_POLL_INTERVAL",
		"MEETWISE_MAX_RESULTS", "MEETWISE_AI_PROVIDER", "GEMINI_API_KEY",
		"OPENAI_API_KEY", "GROQ_API_KEY", "MEETWISE_VALIDATION_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultMaxResults, cfg.MaxResults)
	assert.Equal(t, 30*24*time.Hour, cfg.UpcomingWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.PastWindow)
	assert.Equal(t, 10*time.Second, cfg.ValidationTimeout)
	assert.Equal(t, ProviderNone, cfg.AI.Provider)
	assert.Equal(t, filepath.Join("google-calendar-mcp", "tokens.json"),
		filepath.Join(filepath.Base(filepath.Dir(cfg.TokenPath)), filepath.Base(cfg.TokenPath)))
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEETWISE_TOKEN_PATH", "/tmp/tokens.json")
	t.Setenv("MEETWISE_POLL_INTERVAL", "90")
	t.Setenv("MEETWISE_MAX_RESULTS", "25")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg := Load()

	assert.Equal(t, "/tmp/tokens.json", cfg.TokenPath)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, 25, cfg.MaxResults)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gsk_test", cfg.AI.OpenAIAPIKey)
	assert.Equal(t, "http://localhost:3000/auth/google/callback", cfg.RedirectURL())
}

func TestConfig_Validate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"short poll interval", func(c *Config) { c.PollInterval = time.Millisecond }, true},
		{"zero max results", func(c *Config) { c.MaxResults = 0 }, true},
		{"public http base url", func(c *Config) { c.BaseURL = "http://dashboard.example.com" }, true},
		{"https base url", func(c *Config) { c.BaseURL = "https://dashboard.example.com" }, false},
		{"gemini without key", func(c *Config) { c.AI.Provider = ProviderGemini }, true},
		{"gemini with key", func(c *Config) { c.AI.Provider = ProviderGemini; c.AI.GeminiAPIKey = "k" }, false},
		{"unknown provider", func(c *Config) { c.AI.Provider = "llama" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:3000", false},
		{"http://127.0.0.1:8080", false},
		{"http://[::1]:8080", false},
		{"https://meetwise.example.com", false},
		{"http://meetwise.example.com", true},
		{"ftp://localhost", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateBaseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequireOAuthClient(t *testing.T) {
	cfg := Config{}
	assert.Error(t, cfg.RequireOAuthClient())

	cfg.GoogleClientID = "id"
	cfg.GoogleClientSecret = "secret"
	assert.NoError(t, cfg.RequireOAuthClient())
}
