package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetwise/internal/config"
	"github.com/teemow/meetwise/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	debug        bool
	logFormat    string
	tokenPath    string
	baseURL      string
	pollInterval time.Duration
	aiProvider   string
}

var flags globalFlags

// rootCmd represents the base command for the meetwise application
var rootCmd = &cobra.Command{
	Use:   "meetwise",
	Short: "Calendar dashboard with AI meeting insights",
	Long: `meetwise keeps a live view of your Google Calendar and summarizes
meetings with an AI backend (Gemini or an OpenAI-compatible API).

It can run as:
  - A web dashboard with a JSON API (serve)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)
  - A set of command-line tools (auth, events, insights)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.Options{Debug: flags.debug, Format: flags.logFormat})
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "meetwise version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("token-path") {
		cfg.TokenPath = flags.tokenPath
	}
	if changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if changed("poll-interval") {
		cfg.PollInterval = flags.pollInterval
	}
	if changed("ai-provider") {
		cfg.AI.Provider = flags.aiProvider
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&flags.tokenPath, "token-path", "", "Credential file location. Can also use MEETWISE_TOKEN_PATH env var.")
	pf.StringVar(&flags.baseURL, "base-url", "", "Public base URL of the dashboard. Can also use MEETWISE_BASE_URL env var.")
	pf.DurationVar(&flags.pollInterval, "poll-interval", 0, "Calendar refresh interval (e.g. 5m). Can also use MEETWISE_POLL_INTERVAL env var.")
	pf.StringVar(&flags.aiProvider, "ai-provider", "", "AI backend: gemini, openai or none. Can also use MEETWISE_AI_PROVIDER env var.")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newInsightsCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
